package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time parses duration values
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints and durations
// for tuning knobs.
type Config struct {
    Env               string        // application environment (e.g. "dev", "prod")
    Port              string        // HTTP port to listen on
    DBUser            string        // database username
    DBPass            string        // database password (optional)
    DBHost            string        // database host address
    DBPort            string        // database port number
    DBName            string        // database name
    JWTSecret         string        // secret used to sign JWTs
    AccessTTLMin      int           // access token time-to-live in minutes
    BcryptCost        int           // bcrypt cost for password hashing
    ProcessorURL      string        // payment processor API base URL
    ProcessorKey      string        // payment processor API key
    DispatchInterval  time.Duration // cadence of the in-process reminder dispatcher
    DispatchBatchSize int           // max reminders claimed per dispatcher run
    DispatchReapAfter time.Duration // processing rows older than this are reaped to pending
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:               must("APP_ENV"),
        Port:              must("APP_PORT"),
        DBUser:            must("DB_USER"),
        DBPass:            os.Getenv("DB_PASS"), // empty allowed
        DBHost:            must("DB_HOST"),
        DBPort:            must("DB_PORT"),
        DBName:            must("DB_NAME"),
        JWTSecret:         must("JWT_SECRET"),
        AccessTTLMin:      mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:        mustInt("BCRYPT_COST"),
        ProcessorURL:      must("PAYMENT_PROCESSOR_URL"),
        ProcessorKey:      must("PAYMENT_PROCESSOR_KEY"),
        DispatchInterval:  durOr("REMINDER_DISPATCH_INTERVAL", time.Hour),
        DispatchBatchSize: intOr("REMINDER_DISPATCH_BATCH", 100),
        DispatchReapAfter: durOr("REMINDER_REAP_AFTER", 15*time.Minute),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// intOr returns the integer value of an optional variable, or def when the
// variable is unset or malformed.
func intOr(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return def
    }
    return n
}

// durOr returns the duration value of an optional variable, or def when the
// variable is unset or malformed.
func durOr(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        return def
    }
    return d
}
