package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateRedirectURI valida un redirect_uri de registro o de authorize:
// URI absoluta, con esquema http(s) o custom (apps nativas), sin fragment.
// El error nombra el valor ofensor para que el caller lo reporte tal cual.
func ValidateRedirectURI(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("redirect_uri vacío")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("redirect_uri %q: no es una URI válida", raw)
	}
	if !u.IsAbs() {
		return fmt.Errorf("redirect_uri %q: debe ser absoluta", raw)
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect_uri %q: no debe incluir fragment", raw)
	}
	// http(s) requiere host; schemes custom (myapp://...) se aceptan para
	// clientes nativos aunque no tengan host.
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return fmt.Errorf("redirect_uri %q: falta host", raw)
	}
	return nil
}

// ValidateRedirectURIs valida el set completo de un registro DCR.
func ValidateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("redirect_uris no puede estar vacío")
	}
	for _, u := range uris {
		if err := ValidateRedirectURI(u); err != nil {
			return err
		}
	}
	return nil
}
