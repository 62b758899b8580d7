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
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-Api-Key", c.APIKey)
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
		baseURL = envOr("AGENTGATE_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("AGENTGATE_ADMIN_KEY", "")
		out     = envOr("AGENTGATE_OUT", "text")
		timeout = 30 * time.Second
	)

	cl := &client{HTTP: &http.Client{Timeout: timeout}}

	root := &cobra.Command{
		Use:   "agentctl",
		Short: "CLI admin para agentgate (solo /v1/admin)",
		// los flags recién están parseados acá; el client se arma entonces
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env AGENTGATE_ADMIN_KEY)")
			}
			cl.BaseURL, cl.APIKey, cl.OutFormat = baseURL, apiKey, out
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env AGENTGATE_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env AGENTGATE_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	// ping: usa GET /v1/admin/audit con n=1
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping al Admin API (requiere X-Admin-Api-Key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/audit?n=1", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, []byte(`{"ok":true}`))
			return nil
		},
	}

	// freeze / unfreeze
	var frzDim, frzKey string
	var frzSeconds int64
	freezeCmd := &cobra.Command{
		Use:   "freeze",
		Short: "Congelar una key de rate limit (origin|credential|operation)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if frzDim == "" || frzKey == "" {
				return fmt.Errorf("--dimension y --key son requeridos")
			}
			b, _ := json.Marshal(map[string]any{
				"dimension":        frzDim,
				"key":              frzKey,
				"duration_seconds": frzSeconds,
			})
			status, body, err := cl.do("POST", "/v1/admin/freeze", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("freeze fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	freezeCmd.Flags().StringVar(&frzDim, "dimension", "", "Dimensión: origin|credential|operation")
	freezeCmd.Flags().StringVar(&frzKey, "key", "", "Key dentro de la dimensión (IP, key_id, operación)")
	freezeCmd.Flags().Int64Var(&frzSeconds, "seconds", 0, "Duración en segundos (0 = default del servidor)")

	unfreezeCmd := &cobra.Command{
		Use:   "unfreeze",
		Short: "Levantar un freeze vigente",
		RunE: func(cmd *cobra.Command, args []string) error {
			if frzDim == "" || frzKey == "" {
				return fmt.Errorf("--dimension y --key son requeridos")
			}
			b, _ := json.Marshal(map[string]any{"dimension": frzDim, "key": frzKey})
			status, body, err := cl.do("POST", "/v1/admin/unfreeze", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("unfreeze fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	unfreezeCmd.Flags().StringVar(&frzDim, "dimension", "", "Dimensión: origin|credential|operation")
	unfreezeCmd.Flags().StringVar(&frzKey, "key", "", "Key dentro de la dimensión")

	// revoke
	var revCredID, revKeyID string
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revocar una credencial",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revCredID == "" {
				return fmt.Errorf("--credential-id es requerido")
			}
			b, _ := json.Marshal(map[string]any{
				"credential_id": revCredID,
				"key_id":        revKeyID,
			})
			status, body, err := cl.do("POST", "/v1/admin/credentials/revoke", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revoke fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	revokeCmd.Flags().StringVar(&revCredID, "credential-id", "", "ID de la credencial a revocar")
	revokeCmd.Flags().StringVar(&revKeyID, "key-id", "", "key_id asociado (invalida el caché del resolver)")

	// audit tail
	var tailN int
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Leer los últimos registros de auditoría",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", fmt.Sprintf("/v1/admin/audit?n=%d", tailN), nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("audit fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	auditCmd.Flags().IntVar(&tailN, "n", 50, "Cantidad de registros")

	root.AddCommand(pingCmd, freezeCmd, unfreezeCmd, revokeCmd, auditCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
