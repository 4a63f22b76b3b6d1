// Package helpers: utilidades chicas compartidas por los controllers.
package helpers

import (
	"net/http"
	"strings"
)

// BaseURL resuelve el origin efectivo del request, en orden:
//
//  1. publicURL configurado (deploys detrás de proxy con URL canónica fija),
//  2. headers X-Forwarded-Proto / X-Forwarded-Host del reverse proxy,
//  3. lo que trae el request.
//
// Sin trailing slash. Los endpoints de metadata y las callback URLs al IdP se
// construyen sobre esto.
func BaseURL(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if v := r.Header.Get("X-Forwarded-Proto"); v != "" {
		scheme = strings.TrimSpace(strings.Split(v, ",")[0])
	}

	host := r.Host
	if v := r.Header.Get("X-Forwarded-Host"); v != "" {
		host = strings.TrimSpace(strings.Split(v, ",")[0])
	}

	return scheme + "://" + host
}
