package cbcmb

import (
	"golang.org/x/sys/cpu"
)

// HardwareAES reports whether the CPU has AES instructions the standard
// library block cipher uses.
func HardwareAES() bool {
	return cpu.X86.HasAES || cpu.ARM64.HasAES
}

// HardwareWide reports whether the CPU has vector extensions wide enough to
// run eight AES lanes per instruction.
func HardwareWide() bool {
	return cpu.X86.HasAVX512 && cpu.X86.HasAVX512VAES
}
