package routing

import (
	"strings"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"
)

type Access int

const (
	Public Access = iota
	// GuestOnly views send signed-in users home.
	GuestOnly
	// Protected views send anonymous users to sign in.
	Protected
)

const (
	ViewHome     = "home"
	ViewLogin    = "login"
	ViewRegister = "register"
	ViewProfile  = "profile"
	ViewModule   = "module"
	ViewLoading  = "loading"
	ViewNotFound = "not-found"

	PathHome  = "/"
	PathLogin = "/login"
)

type Route struct {
	Path   string
	View   string
	Access Access
	Module *models.Module
}

// Resolution is what a client should render for a path.
type Resolution struct {
	View     string         `json:"view"`
	Path     string         `json:"path"`
	Redirect string         `json:"redirect,omitempty"`
	Module   *models.Module `json:"module,omitempty"`
}

func Routes() []Route {
	routes := []Route{
		{Path: PathHome, View: ViewHome, Access: Public},
		{Path: PathLogin, View: ViewLogin, Access: GuestOnly},
		{Path: "/register", View: ViewRegister, Access: GuestOnly},
		{Path: "/profile", View: ViewProfile, Access: Protected},
	}
	for i := range models.Modules {
		m := models.Modules[i]
		routes = append(routes, Route{Path: m.Path, View: ViewModule, Access: Protected, Module: &m})
	}
	return routes
}

func normalize(path string) string {
	if path == "" {
		return PathHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Resolve applies the route guards to path for the given session state.
func Resolve(path string, st session.State) Resolution {
	path = normalize(path)

	for _, r := range Routes() {
		if r.Path != path {
			continue
		}
		switch r.Access {
		case Protected:
			if st.LoadingInitialAuth {
				return Resolution{View: ViewLoading, Path: path}
			}
			if st.Identity == nil {
				return Resolution{View: ViewLogin, Path: path, Redirect: PathLogin}
			}
		case GuestOnly:
			if st.Identity != nil {
				return Resolution{View: ViewHome, Path: path, Redirect: PathHome}
			}
		}
		return Resolution{View: r.View, Path: path, Module: r.Module}
	}

	return Resolution{View: ViewNotFound, Path: path}
}
