package jwt

import "time"

// Config holds token settings loaded from the environment.
type Config struct {
	Secret string        `env:"JWT_SECRET,required"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"saasbilling"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`
}

// NewFromConfig creates a Service from cfg.
func NewFromConfig(cfg Config) (*Service, error) {
	svc, err := NewFromString(cfg.Secret)
	if err != nil {
		return nil, err
	}
	svc.issuer = cfg.Issuer
	return svc, nil
}
