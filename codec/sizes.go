package codec

import (
	"math"

	"github.com/pulseprotocolorg-cyber/pulse-go/message"
)

// SizeComparison reports per-format encoded sizes for one message. It is a
// diagnostic, not a correctness guarantee.
type SizeComparison struct {
	JSONBytes       int     `json:"json_bytes"`
	BinaryBytes     int     `json:"binary_bytes"`
	BinaryReduction float64 `json:"binary_reduction"`
	SavingsPercent  float64 `json:"savings_percent"`
}

// Sizes encodes m in every concrete format and compares the byte counts.
func Sizes(m *message.Message) (SizeComparison, error) {
	jsonData, err := Encode(m, FormatJSON)
	if err != nil {
		return SizeComparison{}, err
	}
	binData, err := Encode(m, FormatBinary)
	if err != nil {
		return SizeComparison{}, err
	}

	cmp := SizeComparison{
		JSONBytes:   len(jsonData),
		BinaryBytes: len(binData),
	}
	if cmp.BinaryBytes > 0 {
		cmp.BinaryReduction = round2(float64(cmp.JSONBytes) / float64(cmp.BinaryBytes))
	}
	if cmp.JSONBytes > 0 {
		cmp.SavingsPercent = round2((1 - float64(cmp.BinaryBytes)/float64(cmp.JSONBytes)) * 100)
	}
	return cmp, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
