package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderSize = 6 // 4 bytes length + 2 bytes frame type

	FrameHeartbeat uint16 = 0
	FrameEvent     uint16 = 10

	DefaultMaxFrameSize = 64 * 1024
)

var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame 写一个完整的帧
func WriteFrame(w io.Writer, frameType uint16, body []byte) error {
	_, err := w.Write(BuildFrame(frameType, body))
	return err
}

// BuildFrame 组装帧头和消息体
func BuildFrame(frameType uint16, body []byte) []byte {
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	binary.BigEndian.PutUint16(frame[4:6], frameType)
	copy(frame[HeaderSize:], body)
	return frame
}

// ReadFrame 读取一个帧，maxSize <= 0 时使用默认上限
func ReadFrame(r io.Reader, maxSize int) (uint16, []byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	length := binary.BigEndian.Uint32(header[:4])
	frameType := binary.BigEndian.Uint16(header[4:6])
	if int64(length) > int64(maxSize) {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return frameType, body, nil
}
