package pecoff

// IMAGE_FILE_MACHINE_* constants, grounded on the same COFFHeader.Machine
// field the xyproto-vibe67 example repo's pe_reader.go reads, restricted
// to the handful of values likely to turn up on a resolved library path.
const (
	imageFileMachineI386  = 0x014c
	imageFileMachineAMD64 = 0x8664
	imageFileMachineARM   = 0x01c0
	imageFileMachineARM64 = 0xaa64
)

var peMachineNames = map[uint16]string{
	imageFileMachineI386:  "i386",
	imageFileMachineAMD64: "amd64",
	imageFileMachineARM:   "arm",
	imageFileMachineARM64: "arm64",
}

func peMachineName(m uint16) string {
	if name, ok := peMachineNames[m]; ok {
		return name
	}
	return "unknown"
}
