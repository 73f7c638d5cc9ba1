package notify

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"strings"
	"time"
)

type header struct{ key, value string }

// buildMessage renders an RFC 5322 message with an HTML body.
func buildMessage(from string, to []string, subject, html string, date time.Time, extra ...header) []byte {
	hs := make([]header, 0, 8+len(extra))
	if from != "" {
		hs = append(hs, header{"From", from})
	}
	hs = append(hs,
		header{"To", strings.Join(to, ", ")},
		header{"Subject", mime.QEncoding.Encode("utf-8", subject)},
		header{"Date", date.Format(time.RFC1123Z)},
		header{"MIME-Version", "1.0"},
		header{"Content-Type", `text/html; charset="UTF-8"`},
		header{"Content-Transfer-Encoding", "quoted-printable"},
	)
	hs = append(hs, extra...)

	var buf bytes.Buffer
	for _, h := range hs {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
	}
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	_, _ = qp.Write([]byte(html))
	_ = qp.Close()
	return buf.Bytes()
}
