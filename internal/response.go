package internal

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
)

// The HTTP decoder hands the upgrade response over as a stream of discrete
// events: exactly one head, zero or more body chunks, then end.
type responseEventKind int

const (
	responseHead responseEventKind = iota
	responseBody
	responseEnd
)

type responseEvent struct {
	kind responseEventKind
	head *http.Response
	body []byte
}

// readResponseEvents decodes one HTTP response from br and feeds it to sink
// as head, body chunk, and end events. Bytes past the end of the response
// body are left in br untouched, which is what lets the frame codec take over
// the same reader afterwards.
func readResponseEvents(br *bufio.Reader, sink func(responseEvent)) error {
	head, err := http.ReadResponse(br, nil)
	if err != nil {
		return fmt.Errorf("read upgrade response: %w", err)
	}
	sink(responseEvent{kind: responseHead, head: head})
	if head.Body != nil {
		buf := make([]byte, 4096)
		for {
			n, rerr := head.Body.Read(buf)
			if n > 0 {
				sink(responseEvent{kind: responseBody, body: buf[:n]})
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return fmt.Errorf("read upgrade response body: %w", rerr)
			}
		}
		_ = head.Body.Close()
	}
	sink(responseEvent{kind: responseEnd})
	return nil
}

// upgradeTracker accumulates the streamed upgrade response. It is single-use:
// one head, any number of ignored body chunks, then end, which yields the
// completed head. Event ordering is guaranteed by the HTTP decoder; a
// violation means the decoder itself is broken, so it is treated as a
// programmer error, not a runtime condition.
type upgradeTracker struct {
	head *http.Response
	done bool
}

// consume feeds one response event into the tracker. It returns the completed
// head once, on the end event, and nil otherwise.
func (t *upgradeTracker) consume(ev responseEvent) *http.Response {
	if t.done {
		panic("wsconnect: upgrade tracker reused after end of response")
	}
	switch ev.kind {
	case responseHead:
		if t.head != nil {
			panic("wsconnect: second response head before end of upgrade response")
		}
		t.head = ev.head
	case responseBody:
		// The upgrade response carries no meaningful body.
	case responseEnd:
		if t.head == nil {
			panic("wsconnect: end of upgrade response with no head")
		}
		t.done = true
		return t.head
	}
	return nil
}
