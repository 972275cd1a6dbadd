package decode

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
)

// TypeQTN is the proprietary quaternion sentence type: $--QTN,w,x,y,z*hh.
// The library validates the trailing NMEA checksum for us.
const TypeQTN = "QTN"

// QTN is the parsed quaternion sentence.
type QTN struct {
	nmea.BaseSentence
	W float64
	X float64
	Y float64
	Z float64
}

func init() {
	nmea.MustRegisterParser(TypeQTN, func(s nmea.BaseSentence) (nmea.Sentence, error) {
		p := nmea.NewParser(s)
		return QTN{
			BaseSentence: s,
			W:            p.Float64(0, "w"),
			X:            p.Float64(1, "x"),
			Y:            p.Float64(2, "y"),
			Z:            p.Float64(3, "z"),
		}, p.Err()
	})
}

// decodeNMEA parses the frame as NMEA sentences, keeping only QTN ones.
// Sentences of other types pass through uncounted (GPS or debug traffic on
// the same line is not an error); unparseable lines are counted invalid.
func (d *Decoder) decodeNMEA(frame []byte) []quat.Quaternion {
	var out []quat.Quaternion
	for _, line := range strings.FieldsFunc(string(frame), func(r rune) bool {
		return r == '\n' || r == '\r'
	}) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			d.stats.Total++
			d.stats.Invalid++
			log.Debugf("decode: nmea parse error: %v", err)
			continue
		}
		if sentence.DataType() != TypeQTN {
			continue
		}

		s := sentence.(QTN)
		out = append(out, quat.Quaternion{W: s.W, X: s.X, Y: s.Y, Z: s.Z})
	}
	return out
}
