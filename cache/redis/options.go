package redis

import (
	"crypto/tls"
	"time"
)

// Options controls how the Redis cache store connects to the server.
//
// URL, when set, takes precedence over Addr/Password/DB and accepts the
// redis:// and rediss:// schemes.
type Options struct {
	URL          string
	Addr         string
	Password     string
	DB           int
	TLS          *tls.Config
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	// ScanCount is the COUNT hint passed to SCAN when enumerating keys.
	ScanCount int64
	// DeleteBatch caps the number of keys sent in a single DEL.
	DeleteBatch int
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:6379"
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 2 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.DB < 0 {
		o.DB = 0
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 8
	}
	if o.ScanCount <= 0 {
		o.ScanCount = 100
	}
	if o.DeleteBatch <= 0 {
		o.DeleteBatch = 500
	}
	return o
}
