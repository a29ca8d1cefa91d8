// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# CLI Flags

	-p            Server port
	-d            Database URL
	-t            Database type (sqlite or postgres)
	-cors-origin  Allowed CORS origin
	-alpha        Online learning rate
	-ridge        L2 penalty of the final fit
	-fit-timeout  Time limit of one final fit
	-session-idle Idle time before an online session is evicted

# Environment Variables

Flags fall back to environment variables, which may come from a .env file
loaded by LoadDotEnv:

	PORT            → -p (default 3318)
	DATABASE_URL    → -d (required)
	DATABASE_TYPE   → -t (default sqlite)
	CORS_ORIGIN     → -cors-origin
	BWS_ALPHA       → -alpha (default 0.1, must be in (0, 1))
	BWS_RIDGE       → -ridge (default 0.01)
	BWS_FIT_TIMEOUT → -fit-timeout (default 10s)
	BWS_SESSION_IDLE → -session-idle (default 30m)

CLI flags take precedence over environment variables.
*/
package cliparse
