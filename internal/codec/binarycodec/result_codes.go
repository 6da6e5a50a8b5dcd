package binarycodec

import "fmt"

// Transaction result codes that appear in stored metadata. Codes outside the
// tes/tec ranges never reach the history store because rippled only includes
// transactions that claimed a fee.
var resultCodeByName = map[string]uint8{
	"tesSUCCESS":               0,
	"tecCLAIM":                 100,
	"tecPATH_PARTIAL":          101,
	"tecUNFUNDED_ADD":          102,
	"tecUNFUNDED_OFFER":        103,
	"tecUNFUNDED_PAYMENT":      104,
	"tecFAILED_PROCESSING":     105,
	"tecDIR_FULL":              121,
	"tecINSUF_RESERVE_LINE":    122,
	"tecINSUF_RESERVE_OFFER":   123,
	"tecNO_DST":                124,
	"tecNO_DST_INSUF_XRP":      125,
	"tecNO_LINE_INSUF_RESERVE": 126,
	"tecNO_LINE_REDUNDANT":     127,
	"tecPATH_DRY":              128,
	"tecUNFUNDED":              129,
	"tecNO_ALTERNATIVE_KEY":    130,
	"tecNO_REGULAR_KEY":        131,
	"tecOWNERS":                132,
	"tecNO_ISSUER":             133,
	"tecNO_AUTH":               134,
	"tecNO_LINE":               135,
	"tecINSUFF_FEE":            136,
	"tecFROZEN":                137,
	"tecNO_TARGET":             138,
	"tecNO_PERMISSION":         139,
	"tecNO_ENTRY":              140,
	"tecINSUFFICIENT_RESERVE":  141,
	"tecNEED_MASTER_KEY":       142,
	"tecDST_TAG_NEEDED":        143,
	"tecINTERNAL":              144,
	"tecOVERSIZE":              145,
	"tecCRYPTOCONDITION_ERROR": 146,
	"tecINVARIANT_FAILED":      147,
	"tecEXPIRED":               148,
	"tecDUPLICATE":             149,
	"tecKILLED":                150,
	"tecHAS_OBLIGATIONS":       151,
	"tecTOO_SOON":              152,
}

var resultNameByCode = func() map[uint8]string {
	m := make(map[uint8]string, len(resultCodeByName))
	for name, code := range resultCodeByName {
		m[code] = name
	}
	return m
}()

// ResultCodeFromName maps "tesSUCCESS" style names to their numeric code.
func ResultCodeFromName(name string) (uint8, error) {
	code, ok := resultCodeByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrBadResultCode, name)
	}
	return code, nil
}

// ResultNameFromCode maps a numeric result code back to its name.
func ResultNameFromCode(code uint8) (string, error) {
	name, ok := resultNameByCode[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrBadResultCode, code)
	}
	return name, nil
}
