package main

import (
	"testing"
	"time"
)

func TestGenerateTLSConfig(t *testing.T) {
	cfg, fingerprint, err := generateTLSConfig(24*time.Hour, "localhost")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
	if len(fingerprint) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(fingerprint))
	}

	leaf := cfg.Certificates[0].Leaf
	if leaf == nil {
		t.Fatal("leaf not populated")
	}
	if leaf.Subject.CommonName != "localhost" {
		t.Fatalf("CN = %q", leaf.Subject.CommonName)
	}
	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Fatalf("verify localhost: %v", err)
	}
	if err := leaf.VerifyHostname("127.0.0.1"); err != nil {
		t.Fatalf("verify 127.0.0.1: %v", err)
	}
	if leaf.NotAfter.Before(time.Now().Add(23 * time.Hour)) {
		t.Fatalf("validity too short: %v", leaf.NotAfter)
	}
}

func TestGenerateTLSConfigIPHost(t *testing.T) {
	cfg, _, err := generateTLSConfig(time.Hour, "192.168.1.10")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	leaf := cfg.Certificates[0].Leaf
	if err := leaf.VerifyHostname("192.168.1.10"); err != nil {
		t.Fatalf("verify ip: %v", err)
	}
}
