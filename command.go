/*
Command byte sequences sent to the sensors.

Commands use their own framing, distinct from the data frames: Plantower
sensors take 7 byte command frames, NovaFitness sensors take 19 byte ones
addressed to a device id. Replies to commands reuse other markers than the
data frames, so the framer skims them as noise. Byte sequences are nailed
down against the datasheet examples in command_test.go.
*/

package pmsense

// CommandSet holds the raw command sequences for one family. A nil entry
// means the sensor does not support that command and it becomes a no-op.
type CommandSet struct {
	Wake        []byte
	Sleep       []byte
	PassiveMode []byte // reporting on request only
	ActiveMode  []byte // spontaneous periodic reporting
	PassiveRead []byte // request one measurement while passive
}

// plantowerCmd builds a 7 byte PMSx003 command frame:
// 42 4D cmd 00 data, then a 16-bit big-endian sum of the first 5 bytes.
func plantowerCmd(cmd byte, data byte) []byte {
	b := []byte{0x42, 0x4D, cmd, 0x00, data, 0, 0}
	var sum uint16
	for _, v := range b[:5] {
		sum += uint16(v)
	}
	b[5] = byte(sum >> 8)
	b[6] = byte(sum)
	return b
}

var plantowerCommands = CommandSet{
	Wake:        plantowerCmd(0xE4, 0x01),
	Sleep:       plantowerCmd(0xE4, 0x00),
	PassiveMode: plantowerCmd(0xE1, 0x00),
	ActiveMode:  plantowerCmd(0xE1, 0x01),
	PassiveRead: plantowerCmd(0xE2, 0x00),
}

// sds011Cmd builds a 19 byte SDS011 command frame addressed to any device:
// AA B4 fn, 12 data bytes, FF FF id, 8-bit sum of bytes 2..16, AB.
func sds011Cmd(fn byte, data ...byte) []byte {
	b := make([]byte, 19)
	b[0], b[1] = 0xAA, 0xB4
	b[2] = fn
	copy(b[3:15], data)
	b[15], b[16] = 0xFF, 0xFF // any device
	var sum byte
	for _, v := range b[2:17] {
		sum += v
	}
	b[17] = sum
	b[18] = 0xAB
	return b
}

var sds011Commands = CommandSet{
	Wake:        sds011Cmd(6, 1, 1),
	Sleep:       sds011Cmd(6, 1, 0),
	PassiveMode: sds011Cmd(2, 1, 1),
	ActiveMode:  sds011Cmd(2, 1, 0),
	PassiveRead: sds011Cmd(4),
}
