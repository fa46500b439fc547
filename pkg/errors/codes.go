package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal   ErrorCode = "COMMON_001"
	ErrCodeBadRequest ErrorCode = "COMMON_002"
	ErrCodeCanceled   ErrorCode = "COMMON_003"
	ErrCodeStorage    ErrorCode = "COMMON_004"
)

// Input / output Error Codes
const (
	ErrCodeInputNotFound      ErrorCode = "INPUT_001"
	ErrCodeInputUnreadable    ErrorCode = "INPUT_002"
	ErrCodeFormatUnsupported  ErrorCode = "INPUT_003"
	ErrCodeOutputUnwritable   ErrorCode = "OUTPUT_001"
	ErrCodeOutputWriteFailed  ErrorCode = "OUTPUT_002"
	ErrCodeAuxiliaryEmpty     ErrorCode = "INPUT_004"
	ErrCodeCoordinatesMissing ErrorCode = "INPUT_005"
)

// Molecule Error Codes
const (
	ErrCodeMoleculeInvalidSMILES    ErrorCode = "MOL_001"
	ErrCodeMoleculeParsingFailed    ErrorCode = "MOL_006"
	ErrCodeSubstructureSearchFailed ErrorCode = "MOL_012"
)

// Query / selector Error Codes
const (
	ErrCodeInvalidSMARTS      ErrorCode = "SMARTS_001"
	ErrCodeInvalidSite        ErrorCode = "SITE_001"
	ErrCodeResidueNotFound    ErrorCode = "SITE_002"
	ErrCodeAtomCountMismatch  ErrorCode = "RMSD_001"
	ErrCodePatternAbsent      ErrorCode = "RMSD_002"
	ErrCodeThresholdInvalid   ErrorCode = "RMSD_003"
	ErrCodeSuperpositionFault ErrorCode = "RMSD_004"
)

// Aliases used across the codebase.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")

	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeCanceled     = ErrCodeCanceled
	CodeStorage      = ErrCodeStorage

	CodeInputNotFound      = ErrCodeInputNotFound
	CodeInputUnreadable    = ErrCodeInputUnreadable
	CodeFormatUnsupported  = ErrCodeFormatUnsupported
	CodeOutputUnwritable   = ErrCodeOutputUnwritable
	CodeOutputWriteFailed  = ErrCodeOutputWriteFailed
	CodeAuxiliaryEmpty     = ErrCodeAuxiliaryEmpty
	CodeCoordinatesMissing = ErrCodeCoordinatesMissing

	CodeInvalidSMILES         = ErrCodeMoleculeInvalidSMILES
	CodeMoleculeParsingFailed = ErrCodeMoleculeParsingFailed
	CodeSubstructureFailed    = ErrCodeSubstructureSearchFailed

	CodeInvalidSMARTS     = ErrCodeInvalidSMARTS
	CodeInvalidSite       = ErrCodeInvalidSite
	CodeResidueNotFound   = ErrCodeResidueNotFound
	CodeAtomCountMismatch = ErrCodeAtomCountMismatch
	CodePatternAbsent     = ErrCodePatternAbsent
	CodeThresholdInvalid  = ErrCodeThresholdInvalid
	CodeSuperposition     = ErrCodeSuperpositionFault
)

// Process exit statuses.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInput       = 3
	ExitPattern     = 4
	ExitOutput      = 5
	ExitInterrupted = 130
)

// ErrorCodeExitStatus maps ErrorCodes to process exit statuses.  Codes that
// are not listed exit with ExitFailure.
var ErrorCodeExitStatus = map[ErrorCode]int{
	CodeOK: ExitOK,

	ErrCodeBadRequest:       ExitUsage,
	ErrCodeInvalidSite:      ExitUsage,
	ErrCodeResidueNotFound:  ExitUsage,
	ErrCodeThresholdInvalid: ExitUsage,

	ErrCodeInputNotFound:     ExitInput,
	ErrCodeInputUnreadable:   ExitInput,
	ErrCodeFormatUnsupported: ExitInput,
	ErrCodeAuxiliaryEmpty:    ExitInput,
	ErrCodePatternAbsent:     ExitInput,

	ErrCodeInvalidSMARTS: ExitPattern,

	ErrCodeOutputUnwritable:  ExitOutput,
	ErrCodeOutputWriteFailed: ExitOutput,

	ErrCodeCanceled: ExitInterrupted,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:   "internal error",
	ErrCodeBadRequest: "invalid parameter",
	ErrCodeCanceled:   "run canceled",
	ErrCodeStorage:    "object storage error",

	ErrCodeInputNotFound:      "input not found",
	ErrCodeInputUnreadable:    "input unreadable",
	ErrCodeFormatUnsupported:  "unsupported chemical file format",
	ErrCodeOutputUnwritable:   "output path unwritable",
	ErrCodeOutputWriteFailed:  "failed to write output record",
	ErrCodeAuxiliaryEmpty:     "auxiliary structure file holds no structure",
	ErrCodeCoordinatesMissing: "record has no 3D coordinates",

	ErrCodeMoleculeInvalidSMILES:    "invalid SMILES",
	ErrCodeMoleculeParsingFailed:    "failed to parse molecule",
	ErrCodeSubstructureSearchFailed: "substructure search failed",

	ErrCodeInvalidSMARTS:      "invalid SMARTS pattern",
	ErrCodeInvalidSite:        "invalid site selector",
	ErrCodeResidueNotFound:    "residue not found in protein",
	ErrCodeAtomCountMismatch:  "atom correspondence size mismatch",
	ErrCodePatternAbsent:      "pattern does not match structure",
	ErrCodeThresholdInvalid:   "invalid RMSD threshold",
	ErrCodeSuperpositionFault: "superposition failed",
}

// recordLevelCodes lists the codes that describe a failure of one record.
var recordLevelCodes = map[ErrorCode]bool{
	ErrCodeMoleculeInvalidSMILES:    true,
	ErrCodeMoleculeParsingFailed:    true,
	ErrCodeCoordinatesMissing:       true,
	ErrCodeAtomCountMismatch:        true,
	ErrCodePatternAbsent:            true,
	ErrCodeSuperpositionFault:       true,
	ErrCodeSubstructureSearchFailed: true,
}

// ExitStatusForCode returns the process exit status for an ErrorCode.
func ExitStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeExitStatus[code]; ok {
		return status
	}
	return ExitFailure
}

// ExitStatus returns the process exit status for err.  A nil error exits 0.
func ExitStatus(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitStatusForCode(GetCode(err))
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
