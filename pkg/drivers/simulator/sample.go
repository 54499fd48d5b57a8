package simulator

// SampleImage returns a minimal JPEG payload used as the simulated
// camera output. It carries valid SOI/JFIF/EOI markers, enough for
// consumers that only sniff the content type.
func SampleImage() []byte {
	return []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, // JFIF APP0
		0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
		0xFF, 0xD9, // EOI
	}
}
