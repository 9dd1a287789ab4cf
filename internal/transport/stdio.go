package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// maxLine bounds one stdio JSON-RPC line; generous for tool arguments
// without letting a runaway writer exhaust memory.
const maxLine = 8 << 20

// ServeStdio runs the newline-delimited JSON-RPC loop spec.md §4.8
// describes: one request per line on r, one response per line on w. It
// returns when ctx is cancelled or r is exhausted.
func ServeStdio(ctx context.Context, r io.Reader, w io.Writer, router *Router, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := writeLine(w, newError(nil, codeParseError, "parse error: "+err.Error())); writeErr != nil {
				return writeErr
			}
			continue
		}

		resp := router.Route(ctx, &req)
		if resp == nil {
			continue
		}
		if err := writeLine(w, resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		logger.Error("stdio scan error", zap.Error(err))
		return err
	}
	return nil
}

func writeLine(w io.Writer, resp *Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("transport: marshal stdio response: %w", err)
	}
	body = append(body, '\n')
	_, err = w.Write(body)
	return err
}
