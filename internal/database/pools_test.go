package database

import (
	"context"
	"errors"
	"testing"

	"github.com/rickgao/data-ngin/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DBConfig{
		Host:     "localhost",
		Port:     5432,
		Name:     "market",
		User:     "ingest",
		Password: "secret",
		SSLMode:  "disable",
		MaxConns: 8,
		MinConns: 2,
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig() error = %v", err)
	}
	if pc.MaxConns != 8 || pc.MinConns != 2 {
		t.Errorf("MaxConns/MinConns = %d/%d, want 8/2", pc.MaxConns, pc.MinConns)
	}
	if pc.HealthCheckPeriod != healthCheckPeriod {
		t.Errorf("HealthCheckPeriod = %v, want %v", pc.HealthCheckPeriod, healthCheckPeriod)
	}
	if pc.ConnConfig.Host != "localhost" || pc.ConnConfig.Port != 5432 {
		t.Errorf("host = %s:%d, want localhost:5432", pc.ConnConfig.Host, pc.ConnConfig.Port)
	}
}

func TestPoolConfig_ZeroSizesKeepPgxDefaults(t *testing.T) {
	pc, err := poolConfig(config.DBConfig{Host: "localhost", Port: 5432, Name: "market", User: "ingest"})
	if err != nil {
		t.Fatalf("poolConfig() error = %v", err)
	}
	if pc.MaxConns <= 0 {
		t.Errorf("MaxConns = %d, want pgx default > 0", pc.MaxConns)
	}
}

func TestPools_PingWithoutPool(t *testing.T) {
	var p Pools
	if err := p.Ping(context.Background()); !errors.Is(err, errNoPool) {
		t.Errorf("Ping() error = %v, want errNoPool", err)
	}
	p.Close()
}
