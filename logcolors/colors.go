package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
	LogHTTP   = Cyan + "[HTTP]" + Reset
)

// Cache-related log prefixes
const (
	LogCacheInit     = Blue + "[Cache:Init]" + Reset
	LogCache         = Blue + "[Cache]" + Reset
	LogCacheBackup   = Blue + "[Cache:Backup]" + Reset
	LogCacheClear    = Blue + "[Cache:Clear]" + Reset
	LogCacheLyrics   = Green + "[Cache:Lyrics]" + Reset
	LogCacheNegative = Cyan + "[Cache:Negative]" + Reset
)

// Request guarding log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// Lyrics engine and session log prefixes
const (
	LogDetect  = Cyan + "[Detect]" + Reset
	LogSession = Green + "[Session]" + Reset
	LogReaper  = Blue + "[Session:Reaper]" + Reset
)

// Provider log prefixes
const (
	LogSearch   = Blue + "[Search]" + Reset
	LogSuccess  = Green + "[Success]" + Reset
	LogLyrics   = Blue + "[Lyrics]" + Reset
	LogFallback = Cyan + "[Fallback]" + Reset
	LogWarning  = Red + "[Warning]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Provider returns a colored prefix for a lyrics provider, e.g. "[LRCLib]"
func Provider(name string) string {
	return Blue + "[" + name + "]" + Reset
}
