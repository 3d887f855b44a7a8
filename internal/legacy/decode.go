package legacy

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
)

// ignoreFields are object attributes dropped during normalization. "author"
// duplicates the user object and recurses back into the tweet.
var ignoreFields = map[string]bool{"author": true}

// createdAtLayout matches the timestamp format of current tweet archives, so
// recovered records mix cleanly with them.
const createdAtLayout = "Mon Jan 02 15:04:05 +0000 2006"

// pickleClass stands in for any class referenced by a legacy pickle. The
// archives were written by long-dead library versions; nothing here imports
// those classes, so every instance decodes into a plain attribute map.
type pickleClass struct {
	module string
	name   string
}

func (c *pickleClass) PyNew(args ...interface{}) (interface{}, error) {
	return &pickleObject{class: c, attrs: types.NewDict()}, nil
}

func (c *pickleClass) Call(args ...interface{}) (interface{}, error) {
	return &pickleObject{class: c, attrs: types.NewDict()}, nil
}

// pickleObject is a decoded instance: a bag of attributes set by the pickle
// BUILD opcode.
type pickleObject struct {
	class *pickleClass
	attrs *types.Dict
}

func (o *pickleObject) PyDictSet(key, value interface{}) error {
	o.attrs.Set(key, value)
	return nil
}

// datetimeClass reconstructs datetime.datetime instances from their pickled
// 10-byte payload: year (big-endian uint16), month, day, hour, minute,
// second, microsecond (3 bytes).
type datetimeClass struct{}

func (datetimeClass) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("legacy: datetime pickled without payload")
	}

	var payload []byte
	switch v := args[0].(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		return nil, fmt.Errorf("legacy: unexpected datetime payload type %T", args[0])
	}
	if len(payload) < 10 {
		return nil, fmt.Errorf("legacy: datetime payload too short: %d bytes", len(payload))
	}

	year := int(binary.BigEndian.Uint16(payload[0:2]))
	micros := int(payload[7])<<16 | int(payload[8])<<8 | int(payload[9])
	return time.Date(year, time.Month(payload[2]), int(payload[3]),
		int(payload[4]), int(payload[5]), int(payload[6]),
		micros*1000, time.UTC), nil
}

// newUnpickler builds an unpickler that decodes arbitrary classes into
// attribute maps and datetimes into time.Time.
func newUnpickler(r io.Reader) pickle.Unpickler {
	u := pickle.NewUnpickler(r)
	u.FindClass = func(module, name string) (interface{}, error) {
		if module == "datetime" && name == "datetime" {
			return datetimeClass{}, nil
		}
		return &pickleClass{module: module, name: name}, nil
	}
	return u
}

// normalize converts a decoded pickle value into a JSON-marshalable value.
func normalize(v interface{}) interface{} {
	switch value := v.(type) {
	case nil, bool, int, int64, float64, string:
		return value
	case []byte:
		return string(value)
	case time.Time:
		return value.Format(createdAtLayout)
	case *pickleObject:
		return normalizeDict(value.attrs)
	case *types.Dict:
		return normalizeDict(value)
	case *types.List:
		out := make([]interface{}, 0, value.Len())
		for _, item := range *value {
			out = append(out, normalize(item))
		}
		return out
	case *types.Tuple:
		out := make([]interface{}, 0, value.Len())
		for _, item := range *value {
			out = append(out, normalize(item))
		}
		return out
	case *types.OrderedDict:
		out := make(map[string]interface{}, len(value.Map))
		for key, entry := range value.Map {
			out[fmt.Sprint(key)] = normalize(entry.Value)
		}
		return out
	default:
		return fmt.Sprint(value)
	}
}

func normalizeDict(d *types.Dict) map[string]interface{} {
	out := make(map[string]interface{}, d.Len())
	for _, entry := range *d {
		key := fmt.Sprint(entry.Key)
		if ignoreFields[key] || (len(key) > 0 && key[0] == '_') {
			continue
		}
		out[key] = normalize(entry.Value)
	}
	return out
}
