package protocol

import "github.com/msg555/vericas/wire"

// Request header: len:u16 name:utf8[len] (§6).
func WriteRequestHeader(w *wire.Writer, name string) error { return w.WriteString16(name) }
func ReadRequestName(r *wire.Reader) (string, error)       { return r.ReadString16() }

// Response header: status:u8; if err, len:u32 message; if ok, the body
// follows immediately; if watch-notify, a WatchNotify value follows.
func WriteOkResponse(w *wire.Writer, encodeBody func(w *wire.Writer) error) error {
	if err := w.WriteU8(StatusOK); err != nil {
		return err
	}
	return encodeBody(w)
}

func WriteErrResponse(w *wire.Writer, message string) error {
	if err := w.WriteU8(StatusErr); err != nil {
		return err
	}
	return w.WriteString(message)
}

func WriteWatchNotify(w *wire.Writer, n WatchNotify) error {
	if err := w.WriteU8(StatusWatchNotify); err != nil {
		return err
	}
	return WatchNotifyCodec.Encode(w, n)
}

func ReadResponseStatus(r *wire.Reader) (uint8, error) { return r.ReadU8() }
func ReadErrMessage(r *wire.Reader) (string, error)    { return r.ReadString() }
