package device

// Little-endian S16 conversions between the device's byte buffers and the
// canceller's sample frames. Both run inside the real-time callback and
// write into preallocated destinations.

// bytesToInt16 unpacks little-endian S16 PCM into dst. dst must hold
// len(src)/2 samples.
func bytesToInt16(src []byte, dst []int16) {
	for i := range dst {
		dst[i] = int16(src[2*i]) | int16(src[2*i+1])<<8
	}
}

// int16ToBytes packs samples back into little-endian S16 PCM. dst must hold
// 2*len(src) bytes.
func int16ToBytes(src []int16, dst []byte) {
	for i, s := range src {
		dst[2*i] = byte(s)
		dst[2*i+1] = byte(s >> 8)
	}
}
