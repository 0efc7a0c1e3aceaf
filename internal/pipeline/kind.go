package pipeline

// Kind tags the variant carried by a Msg. It is a bitmask so that an
// element can describe the set of kinds it is prepared to handle as a
// single value (see Kind.In).
type Kind uint16

const (
	KindMode Kind = 1 << iota
	KindTrack
	KindDrain
	KindDelay
	KindEncodedStream
	KindMetatext
	KindStreamInterrupted
	KindHalt
	KindFlush
	KindWait
	KindDecodedStream
	KindBitRate
	KindAudioPcm
	KindAudioDsd
	KindSilence
	KindQuit
)

var kindNames = map[Kind]string{
	KindMode:              "Mode",
	KindTrack:             "Track",
	KindDrain:             "Drain",
	KindDelay:             "Delay",
	KindEncodedStream:     "EncodedStream",
	KindMetatext:          "Metatext",
	KindStreamInterrupted: "StreamInterrupted",
	KindHalt:              "Halt",
	KindFlush:             "Flush",
	KindWait:              "Wait",
	KindDecodedStream:     "DecodedStream",
	KindBitRate:           "BitRate",
	KindAudioPcm:          "AudioPcm",
	KindAudioDsd:          "AudioDsd",
	KindSilence:           "Silence",
	KindQuit:              "Quit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// In reports whether k is one of the kinds described by set.
func (k Kind) In(set Kind) bool {
	return set&k != 0
}

// requireSupported asserts that msg's kind is in the set of kinds an
// element declared it handles. Encountering an undeclared kind is a
// programmer error and is fatal.
func requireSupported(set Kind, msg Msg) {
	assertf(msg.Kind().In(set), "unsupported message kind %s", msg.Kind())
}
