package core

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little-endian linear PCM.
	ULAW                            // μ-law encoding format.
	MP3                             // MPEG-1 Audio Layer III.
)

// ContentType returns the MIME type used when the format travels over HTTP.
func (f AudioEncodingFormat) ContentType() string {
	switch f {
	case ULAW:
		return "audio/basic"
	case MP3:
		return "audio/mpeg"
	default:
		return "audio/L16"
	}
}

func (f AudioEncodingFormat) String() string {
	switch f {
	case ULAW:
		return "ulaw"
	case MP3:
		return "mp3"
	default:
		return "pcm"
	}
}

// ParseAudioEncodingFormat maps a config/wire name onto a format. Unknown
// names fall back to MP3, the proxy's default output.
func ParseAudioEncodingFormat(name string) AudioEncodingFormat {
	switch name {
	case "ulaw", "mulaw", "pcmu":
		return ULAW
	case "pcm", "linear16":
		return PCM
	default:
		return MP3
	}
}

type AudioClip struct {
	Data       []byte              // Encoded audio payload.
	Format     AudioEncodingFormat // Encoding of Data.
	SampleRate int                 // Sample rate in Hz, zero when the container carries it (MP3).
}
