package constants

const (
	AppName             = "platewise"
	DefaultKeyringUser  = "database-connection"
	DefaultConfigPath   = "~/.config/platewise/platewise.db"
	DefaultSettingsFile = "settings.yaml"
	EnvPrefix           = "PLATEWISE_"
	Version             = "v0.3.0"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "platewise-"
	BackupFileSuffix = ".db"
)
