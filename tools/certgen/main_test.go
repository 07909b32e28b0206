package main

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func readCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatalf("%s: not PEM", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return cert
}

func TestRun_WritesChain(t *testing.T) {
	dir := t.TempDir()
	if err := run(dir, "localhost", "dev/1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	ca := readCert(t, filepath.Join(dir, "ca.crt"))
	server := readCert(t, filepath.Join(dir, "server.crt"))
	dev := readCert(t, filepath.Join(dir, "device.crt"))

	if err := server.CheckSignatureFrom(ca); err != nil {
		t.Errorf("server cert not signed by CA: %v", err)
	}
	if err := dev.CheckSignatureFrom(ca); err != nil {
		t.Errorf("device cert not signed by CA: %v", err)
	}
	if dev.Subject.CommonName != "dev_1" {
		t.Errorf("device CN = %q; want %q", dev.Subject.CommonName, "dev_1")
	}

	info, err := os.Stat(filepath.Join(dir, "device.key"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("device key mode = %v; want 0600", info.Mode().Perm())
	}
}

func TestRun_ReusesExistingCA(t *testing.T) {
	dir := t.TempDir()
	if err := run(dir, "localhost", ""); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(filepath.Join(dir, "ca.crt"))

	if err := run(dir, "localhost", ""); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(filepath.Join(dir, "ca.crt"))
	if !bytes.Equal(first, second) {
		t.Error("expected the existing CA to be kept")
	}
	if _, err := os.Stat(filepath.Join(dir, "device.crt")); !os.IsNotExist(err) {
		t.Error("did not expect a device certificate without -device")
	}
}
