package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"
)

// Cache-related log prefixes
const (
	LogCacheInit     = Blue + "[Cache:Init]" + Reset
	LogCache         = Blue + "[Cache]" + Reset
	LogCacheBackup   = Blue + "[Cache:Backup]" + Reset
	LogCacheClear    = Blue + "[Cache:Clear]" + Reset
	LogCacheBackups  = Blue + "[Cache:Backups]" + Reset
	LogCacheRestore  = Blue + "[Cache:Restore]" + Reset
	LogCacheGrid     = Green + "[Cache:Grid]" + Reset
	LogCacheNegative = Cyan + "[Cache:Negative]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// Grid and analysis log prefixes
const (
	LogRequest  = Purple + "[Request]" + Reset
	LogGrid     = Green + "[Grid]" + Reset
	LogAnalysis = Blue + "[Analysis]" + Reset
	LogHTTP     = Cyan + "[HTTP]" + Reset
	LogFallback = Cyan + "[Fallback]" + Reset
	LogWarning  = Red + "[Warning]" + Reset
)
