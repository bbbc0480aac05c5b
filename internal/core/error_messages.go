// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Operators can quote the code when reporting a failed scan or load.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File not found: The input file does not exist
//	          Action: Check the path passed with --nationality / --agesex
//	          Patterns: "no such file or directory", "cannot find the file"
//
//	FILE002 - CSV encoding: The CSV encoding is not supported
//	          Action: Use utf-8 or windows-1251
//	          Patterns: "csv encoding"
//
//	FILE003 - Unsupported format: File extension is not .xlsx, .xlsm or .csv
//	          Action: Export the table as .xlsx or .csv
//	          Patterns: "unsupported spreadsheet format"
//
//	FILE004 - Broken workbook: The workbook could not be opened
//	          Action: Re-save the file in Excel or LibreOffice
//	          Patterns: "open workbook", "not a valid zip file"
//
//	FILE005 - Invalid CSV: The CSV file could not be parsed
//	          Action: Check the delimiter and quoting
//	          Patterns: "parse csv"
//
//	FILE006 - File too large: Upload exceeds the size limit
//	          Action: Upload a single sheet or raise SERVER_MAX_UPLOAD_SIZE
//	          Patterns: "request body too large"
//
//	FILE007 - No file: No file was attached
//	          Action: Attach the table as form field "file"
//	          Patterns: "no file provided"
//
// # Sheet Errors (SHEET001-SHEET099)
//
//	SHEET001 - Shape mismatch: The sheet has fewer columns than the layout needs
//	           Action: Check that the right table was passed for this kind
//	           Patterns: "sheet shape mismatch"
//
//	SHEET002 - Empty workbook: The workbook has no sheets
//	           Patterns: "workbook has no sheets"
//
//	SHEET003 - Sheet not found: The configured sheet does not exist
//	           Action: Check CENSUS_SHEET
//	           Patterns: "read sheet"
//
//	SHEET004 - Unknown table: Table kind is not nationality or agesex
//	           Patterns: "unknown table kind"
//
// # Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - No data: A scan produced nothing to load
//	LOAD002 - Busy: Another load is running
//	LOAD003 - No database: DATABASE_URL is not set
//	LOAD004 - Timeout: The load ran past LOAD_TIMEOUT
//	LOAD005 - Cancelled: The request was cancelled
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Foreign key
//	DB003 - Connection refused
//	DB004 - Connection reset
//	DB005 - Deadlock
//	DB006 - Missing schema: a table does not exist, run "censusload migrate"
//	DB007 - Timeout
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the logs for the
// original error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE007)
	// =========================================================================
	{
		pattern: "no such file or directory",
		msg: UserMessage{
			Message: "Input file not found",
			Action:  "Check the path passed with --nationality / --agesex",
			Code:    "FILE001",
		},
	},
	{
		pattern: "cannot find the file",
		msg: UserMessage{
			Message: "Input file not found",
			Action:  "Check the path passed with --nationality / --agesex",
			Code:    "FILE001",
		},
	},
	{
		pattern: "csv encoding",
		msg: UserMessage{
			Message: "CSV encoding is not supported",
			Action:  "Use utf-8 or windows-1251",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unsupported spreadsheet format",
		msg: UserMessage{
			Message: "File format is not supported",
			Action:  "Export the table as .xlsx or .csv",
			Code:    "FILE003",
		},
	},
	{
		pattern: "open workbook",
		msg: UserMessage{
			Message: "Workbook could not be opened",
			Action:  "Re-save the file in Excel or LibreOffice",
			Code:    "FILE004",
		},
	},
	{
		pattern: "not a valid zip file",
		msg: UserMessage{
			Message: "Workbook could not be opened",
			Action:  "Re-save the file in Excel or LibreOffice",
			Code:    "FILE004",
		},
	},
	{
		pattern: "parse csv",
		msg: UserMessage{
			Message: "CSV file could not be parsed",
			Action:  "Check the delimiter and quoting",
			Code:    "FILE005",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the upload size limit",
			Action:  "Upload a single sheet or raise SERVER_MAX_UPLOAD_SIZE",
			Code:    "FILE006",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was attached",
			Action:  "Attach the table as form field \"file\"",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Sheet Errors (SHEET001-SHEET004)
	// =========================================================================
	{
		pattern: "sheet shape mismatch",
		msg: UserMessage{
			Message: "Sheet has fewer columns than the table layout needs",
			Action:  "Check that the right table was passed for this kind",
			Code:    "SHEET001",
		},
	},
	{
		pattern: "workbook has no sheets",
		msg: UserMessage{
			Message: "Workbook has no sheets",
			Action:  "Check that the file is not empty",
			Code:    "SHEET002",
		},
	},
	{
		pattern: "read sheet",
		msg: UserMessage{
			Message: "Configured sheet could not be read",
			Action:  "Check CENSUS_SHEET",
			Code:    "SHEET003",
		},
	},
	{
		pattern: "unknown table kind",
		msg: UserMessage{
			Message: "Unknown table kind",
			Action:  "Use nationality or agesex",
			Code:    "SHEET004",
		},
	},

	// =========================================================================
	// Load Errors (LOAD001-LOAD005)
	// =========================================================================
	{
		pattern: "no census data to load",
		msg: UserMessage{
			Message: "Nothing to load",
			Action:  "Run check to see why the tables produced no data",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "too many loads in progress",
		msg: UserMessage{
			Message: "Another load is running",
			Action:  "Wait for it to finish and try again",
			Code:    "LOAD002",
		},
	},
	{
		pattern: "database connection not configured",
		msg: UserMessage{
			Message: "No database configured",
			Action:  "Set DATABASE_URL",
			Code:    "LOAD003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Load timed out",
			Action:  "Raise LOAD_TIMEOUT or load smaller files",
			Code:    "LOAD004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "LOAD005",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB007)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Check the load history for an earlier run",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced dimension value does not exist",
			Action:  "Run censusload migrate and retry",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "Database schema is missing",
			Action:  "Run censusload migrate",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB007",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("load: %w", ErrLoadInProgress))
//	// msg.Code == "LOAD002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
