package config

// Defaults mirror the original daemon's fallback configuration
// (simbiota/src/daemon_config.rs's Default impl) and spec §6.
const (
	DefaultConfigPath     = "/etc/simbiota/client.yaml"
	DefaultDetectorClass  = "simple_tlsh"
	DefaultThreshold      = 40
	DefaultDatabaseFile   = "/var/lib/simbiota/database/system.sdb"
	DefaultQuarantinePath = "/var/lib/simbiota/quarantine"
	DefaultPIDPath        = "/run/simbiota.pid"
	DefaultBookkeepingDir = "/var/lib/simbiota/bookkeeping"
	DefaultSMTPPort       = 587
)
