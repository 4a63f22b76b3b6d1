// Generador de SERVER_SECRET. El secreto es la raíz de la que se derivan la
// clave HMAC del state y la clave AES de credenciales (HKDF, dominios
// separados); ver internal/security/keys.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"

	"github.com/dropDatabas3/mcpbridge/internal/security/keys"
)

func main() {
	var (
		size   = flag.Int("size", 32, "bytes de entropía del secreto")
		verify = flag.String("verify", "", "en vez de generar, valida un secreto existente")
	)
	flag.Parse()

	if *verify != "" {
		if _, err := keys.NewDeriver(*verify); err != nil {
			log.Fatalf("secreto inválido: %v", err)
		}
		fmt.Println("ok")
		return
	}

	if *size < 16 {
		log.Fatal("el secreto necesita al menos 16 bytes")
	}
	buf := make([]byte, *size)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("rand: %v", err)
	}
	secret := base64.StdEncoding.EncodeToString(buf)

	// Sanity check: lo que imprimimos tiene que derivar sin error.
	if _, err := keys.NewDeriver(secret); err != nil {
		log.Fatalf("derivación falló: %v", err)
	}

	fmt.Printf("SERVER_SECRET=%s\n", secret)
}
