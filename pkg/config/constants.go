package config

const (
	EnvPrefix = "pimart"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
