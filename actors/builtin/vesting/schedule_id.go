package vesting

import (
	"encoding/binary"
	"fmt"
	"io"

	addr "github.com/filecoin-project/go-address"
	"github.com/minio/blake2b-simd"
	"github.com/multiformats/go-multibase"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"
)

// ScheduleIDLength is the byte length of a schedule identifier.
const ScheduleIDLength = 32

// ScheduleID identifies a vesting schedule.
// It is the BLAKE2b-256 digest of the beneficiary's address bytes followed by the
// big-endian index of the schedule among those created for that beneficiary.
type ScheduleID [ScheduleIDLength]byte

// ScheduleIDForHolder derives the identifier of the index'th schedule created for a beneficiary.
// The beneficiary must be an ID address for the result to match identifiers held in state.
func ScheduleIDForHolder(beneficiary addr.Address, index uint64) ScheduleID {
	raw := beneficiary.Bytes()
	buf := make([]byte, len(raw)+8)
	copy(buf, raw)
	binary.BigEndian.PutUint64(buf[len(raw):], index)
	return blake2b.Sum256(buf)
}

// ParseScheduleID parses the multibase text form of an identifier.
func ParseScheduleID(s string) (ScheduleID, error) {
	var id ScheduleID
	_, data, err := multibase.Decode(s)
	if err != nil {
		return id, xerrors.Errorf("invalid schedule id %q: %w", s, err)
	}
	if len(data) != ScheduleIDLength {
		return id, xerrors.Errorf("invalid schedule id %q: length %d, expected %d", s, len(data), ScheduleIDLength)
	}
	copy(id[:], data)
	return id, nil
}

// Key implements adt.Keyer.
func (id ScheduleID) Key() string {
	return string(id[:])
}

// String returns the base16 multibase encoding.
func (id ScheduleID) String() string {
	s, err := multibase.Encode(multibase.Base16, id[:])
	if err != nil {
		// Base16 is always a supported encoding.
		panic(err)
	}
	return s
}

func (id ScheduleID) IsZero() bool {
	return id == ScheduleID{}
}

func (id *ScheduleID) MarshalCBOR(w io.Writer) error {
	if id == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	scratch := make([]byte, 9)
	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajByteString, uint64(ScheduleIDLength)); err != nil {
		return err
	}
	_, err := w.Write(id[:])
	return err
}

func (id *ScheduleID) UnmarshalCBOR(r io.Reader) error {
	if id == nil {
		return xerrors.Errorf("cannot unmarshal into nil pointer")
	}
	*id = ScheduleID{}

	scratch := make([]byte, 8)
	maj, length, err := cbg.CborReadHeaderBuf(r, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajByteString {
		return fmt.Errorf("unexpected major tag (%d) when unmarshaling ScheduleID: byteString (%d) expected", maj, cbg.MajByteString)
	}
	if length != ScheduleIDLength {
		return fmt.Errorf("schedule id has length %d, expected %d", length, ScheduleIDLength)
	}
	_, err = io.ReadFull(r, id[:])
	return err
}
