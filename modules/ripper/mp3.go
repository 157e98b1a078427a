package ripper

// maxSyncScan bounds how many leading bytes are searched for a frame sync
// before giving up and writing the data unaligned.
const maxSyncScan = 8 * 1024

// findFrameSync returns the offset of the first MPEG audio frame sync word,
// eleven set bits across two bytes, or -1 when none is present.
func findFrameSync(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}
