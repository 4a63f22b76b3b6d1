package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("MCPBRIDGE_URL", "http://localhost:8080")
		out     = envOr("MCPBRIDGE_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "bridgectl",
		Short: "CLI operativa del MCP OAuth bridge",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del bridge (env MCPBRIDGE_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, OutFormat: out, HTTP: &http.Client{Timeout: 30 * time.Second}}
	cobra.OnInitialize(func() {
		cl.BaseURL = baseURL
		cl.OutFormat = out
	})

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Chequea /readyz",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/readyz", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("not ready: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	metadataCmd := &cobra.Command{
		Use:   "metadata",
		Short: "Muestra el documento de authorization server metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/.well-known/oauth-authorization-server", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("metadata fallo: status=%d", status)
			}
			cl.print(status, body)
			return nil
		},
	}

	// grupo client
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Operaciones sobre OAuth clients",
	}

	var regName string
	var regRedirects []string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Registra un client (Dynamic Client Registration)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(regRedirects) == 0 {
				return fmt.Errorf("--redirect-uri es requerido (repetible)")
			}
			payload := map[string]any{"redirect_uris": regRedirects}
			if regName != "" {
				payload["client_name"] = regName
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/register", b)
			if err != nil {
				return err
			}
			if status != http.StatusCreated {
				return fmt.Errorf("registro fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	registerCmd.Flags().StringVar(&regName, "name", "", "client_name opcional")
	registerCmd.Flags().StringArrayVar(&regRedirects, "redirect-uri", nil, "redirect_uri permitido (repetible)")
	clientCmd.AddCommand(registerCmd)

	// grupo token
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Operaciones sobre tokens emitidos",
	}

	var revokeToken string
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca un access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revokeToken == "" {
				return fmt.Errorf("--token es requerido")
			}
			b, _ := json.Marshal(map[string]string{"token": revokeToken})
			status, body, err := cl.do("POST", "/revoke", b)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("revoke fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("revoked")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}
	revokeCmd.Flags().StringVar(&revokeToken, "token", "", "token a revocar")
	tokenCmd.AddCommand(revokeCmd)

	root.AddCommand(pingCmd, metadataCmd, clientCmd, tokenCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
