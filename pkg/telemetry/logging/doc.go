// Package logging builds the service's log/slog loggers.
//
// New returns a *slog.Logger whose handler chain adds request, execution,
// workflow, and trace identifiers from the context and, when RedactPII is
// set, masks applicant identifiers:
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "decision made",
//	    "decision", "approve",
//	    "ssn", "123-45-6789", // logged as ***
//	)
//
// # PII Redaction
//
// Attributes whose names end in a sensitive suffix (ssn, taxId, dateOfBirth,
// accountNumber, and similar) are replaced by ***. String values anywhere
// in a record, including inside applicant maps, are scanned for SSN,
// card-number, email, and phone shapes.
package logging
