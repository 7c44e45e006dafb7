package mwcp

// Constants defining default values for configuration options. These are
// mirrored by the Viper defaults in the CLI configuration loading.
const (
	// DefaultOutputDir is the default directory for written artifacts when
	// none is configured ("" resolves to the current working directory).
	DefaultOutputDir = ""
	// DefaultPrefixMode is the default artifact filename prefix policy.
	DefaultPrefixMode = PrefixNone
	// DefaultReportFormat is the default rendering mode for the CLI.
	DefaultReportFormat = ReportFormatText
)

// Field names with framework-level meaning. All other field names are
// plain taxonomy entries.
const (
	// FieldDebug is the chronological debug trace. It is exempt from dedup
	// so the trace stays complete even when parsers repeat themselves.
	FieldDebug = "debug"
	// FieldOther is the catch-all string-keyed dictionary. It is the only
	// field whose sub-keys are not constrained by the taxonomy.
	FieldOther = "other"
	// FieldOutputFile records one tuple per registered output artifact.
	FieldOutputFile = "outputfile"
)

// tempFilePrefix and scratchDirPrefix name the run-scoped filesystem
// resources so stray leftovers are attributable.
const (
	tempFilePrefix   = "mwcp-inputfile-"
	scratchDirPrefix = "mwcp-managed-"
)

// infoFieldOrder fixes the rendering order of the File Information
// section. The section is emitted only when an input identity is present.
var infoFieldOrder = []string{"inputfilename", "md5", "sha1", "sha256", "compiletime"}

// standardFieldOrder fixes the canonical rendering order of the Standard
// Metadata section. Taxonomy fields absent from this list render after it
// in a fallback pass so new fields are never silently dropped.
var standardFieldOrder = []string{
	"c2_url", "c2_socketaddress", "c2_address", "url", "urlpath",
	"socketaddress", "address", "port", "listenport",
	"credential", "username", "password",
	"missionid", "useragent", "interval", "version", "mutex",
	"service", "servicename", "servicedisplayname", "servicedescription",
	"serviceimage", "servicedll", "injectionprocess",
	"filepath", "directory", "filename",
	"registrypathdata", "registrypath", "registrydata",
	"registrykeyvalue", "registrykey", "registryvalue", "key",
}
