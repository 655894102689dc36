package products

import "math"

// Quality ranks, lower is better. Rank 0 and 1 observations are analysis
// grade; the phenology pipeline treats anything above its configured
// maximum rank as a gap.
const (
	RankGood     = 0 // clear, nominal retrieval
	RankMarginal = 1 // usable, reduced confidence
	RankPoor     = 2 // degraded retrieval, use with care
	RankSnow     = 3 // snow or ice contaminated
	RankBad      = 4 // cloudy, failed retrieval, or not produced
)

// DecodeVIQuality decodes the 16-bit VI Quality word of the MOD13/MYD13/VNP13
// vegetation index products into a quality rank.
//
// Bits 0-1 (MODLAND QA): 0 = good, 1 = check other QA, 2 = snow/ice,
// 3 = cloudy. Bits 2-5 (VI usefulness): 0 highest quality through 12 lowest;
// 13 and above mean the retrieval is not useful.
func DecodeVIQuality(qc uint16) int {
	modland := qc & 0x3
	usefulness := (qc >> 2) & 0xF

	switch modland {
	case 2:
		return RankSnow
	case 3:
		return RankBad
	}

	switch {
	case usefulness <= 2 && modland == 0:
		return RankGood
	case usefulness <= 8:
		return RankMarginal
	case usefulness <= 12:
		return RankPoor
	default:
		return RankBad
	}
}

// DecodeLAIQuality decodes the 8-bit FparLai_QC word of MOD15A2H into a
// quality rank.
//
// Bit 0 (MODLAND QC): 0 = good. Bits 5-7 (SCF_QC): 0 = main algorithm
// without saturation, 1 = main algorithm with saturation, 2-3 = backup
// algorithm, 4 = retrieval failed.
func DecodeLAIQuality(qc uint8) int {
	scf := (qc >> 5) & 0x7

	switch scf {
	case 0:
		if qc&0x1 == 0 {
			return RankGood
		}
		return RankMarginal
	case 1:
		return RankMarginal
	case 2, 3:
		return RankPoor
	default:
		return RankBad
	}
}

// DecodeQC decodes a raw quality-band value into a rank using the
// product's quality scheme. Products without a QC band rank everything
// good; their quality arrives by another route.
func (p Product) DecodeQC(raw float64) int {
	if p.QCBand == "" {
		return RankGood
	}
	if math.IsNaN(raw) || raw < 0 || raw > 65535 {
		return RankBad
	}
	if p.QCBand == "FparLai_QC" {
		if raw > 255 {
			return RankBad
		}
		return DecodeLAIQuality(uint8(raw))
	}
	return DecodeVIQuality(uint16(raw))
}

// GCCRank maps the PhenoCam roistats snow and outlier flags to a quality
// rank. The 3-day summary files carry row flags rather than a QC band.
func GCCRank(snowFlag, outlierFlag bool) int {
	switch {
	case outlierFlag:
		return RankBad
	case snowFlag:
		return RankSnow
	default:
		return RankGood
	}
}
