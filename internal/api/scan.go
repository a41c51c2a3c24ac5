package api

import (
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrMaliciousFile 表示病毒扫描命中。
var ErrMaliciousFile = errors.New("malicious file detected")

// VirusScanner 抽象上传内容的病毒扫描，便于测试时替换。
type VirusScanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 通过 clamd 的流式接口扫描上传内容。
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 构造 clamd 扫描器。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

// Scan 将内容送入 clamd 扫描。命中病毒返回 ErrMaliciousFile，
// 服务不可用等其他情况返回底层错误。
func (s *ClamdScanner) Scan(r io.Reader) error {
	client := clamd.NewClamd(s.addr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return ErrMaliciousFile
		}
	}
	return nil
}
