// Package main writes the API's TLS material under a directory: a CA, a
// server certificate and, optionally, a client certificate for one device.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atinyakov/CovertKeeper/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	host := flag.String("host", "localhost", "server host name")
	deviceID := flag.String("device", "", "device identifier to issue a client certificate for")
	flag.Parse()

	if err := run(*dir, *host, *deviceID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Certificates generated into %s\n", *dir)
}

// run creates the CA unless dir already holds one, then issues the server
// certificate and the device certificate when deviceID is set.
func run(dir, host, deviceID string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	caCertPath := filepath.Join(dir, "ca.crt")
	caKeyPath := filepath.Join(dir, "ca.key")

	if _, err := os.Stat(caCertPath); os.IsNotExist(err) {
		certPEM, keyPEM, err := certgen.NewCA("CovertKeeper CA")
		if err != nil {
			return err
		}
		if err := writePair(caCertPath, caKeyPath, certPEM, keyPEM); err != nil {
			return err
		}
	}

	caCert, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	if err != nil {
		return err
	}

	certPEM, keyPEM, err := certgen.IssueServerCertificate(host, caCert, caKey)
	if err != nil {
		return err
	}
	if err := writePair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"), certPEM, keyPEM); err != nil {
		return err
	}

	if deviceID == "" {
		return nil
	}
	certPEM, keyPEM, err = certgen.IssueDeviceCertificate(deviceID, caCert, caKey)
	if err != nil {
		return err
	}
	return writePair(filepath.Join(dir, "device.crt"), filepath.Join(dir, "device.key"), certPEM, keyPEM)
}

func writePair(certPath, keyPath string, certPEM, keyPEM []byte) error {
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", certPath, err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", keyPath, err)
	}
	return nil
}
