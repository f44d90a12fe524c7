package main

import "time"

type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=8080"`
	DatabaseURL     string        `env:"DATABASE_URL,default=sqlite://intake.db"`
	WebhookSecret   string        `env:"WEBHOOK_SECRET"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
