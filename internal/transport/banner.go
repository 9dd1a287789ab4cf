package transport

import "go.uber.org/zap"

// BannerInfo carries the fields spec.md §4.8 requires on the once-per-start
// bootstrap banner: host, port, base path, auth status (masked token if
// any), store path, storage root, and mode. No raw secret ever appears in
// a field here. Grounded on the teacher's cmd/agentflow runServe startup
// log line, generalized from AgentFlow's version/build fields to this
// kernel's connection-surface fields.
type BannerInfo struct {
	Host          string
	Port          int
	BasePath      string
	AuthMode      string // "none", "shared-secret", "jwt"
	MaskedToken   string // empty unless AuthMode != "none"
	DatabaseURL   string
	StorageRoot   string
	InterfaceMode string // Config.InterfaceMode: "mcp" or "cli"
	Fingerprint   string
}

// LogBanner emits the bootstrap banner exactly once, at Info level.
func LogBanner(logger *zap.Logger, info BannerInfo) {
	fields := []zap.Field{
		zap.String("host", info.Host),
		zap.Int("port", info.Port),
		zap.String("base_path", info.BasePath),
		zap.String("auth_mode", info.AuthMode),
		zap.String("database_url", info.DatabaseURL),
		zap.String("storage_root", info.StorageRoot),
		zap.String("interface_mode", info.InterfaceMode),
		zap.String("fingerprint", info.Fingerprint),
	}
	if info.MaskedToken != "" {
		fields = append(fields, zap.String("token", info.MaskedToken))
	}
	logger.Info("agentmail server starting", fields...)
}
