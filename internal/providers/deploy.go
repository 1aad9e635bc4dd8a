package providers

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Minimal Casper deploy construction: just enough of the byte-level CLValue
// serialization to produce a valid body hash, deploy hash and signature for a
// stored-contract call. Wire shapes follow the casper-node JSON-RPC schema.

type Deploy struct {
	Hash      string         `json:"hash"`
	Header    DeployHeader   `json:"header"`
	Payment   ExecutableItem `json:"payment"`
	Session   ExecutableItem `json:"session"`
	Approvals []Approval     `json:"approvals"`
}

type DeployHeader struct {
	Account      string   `json:"account"`
	Timestamp    string   `json:"timestamp"`
	TTL          string   `json:"ttl"`
	GasPrice     uint64   `json:"gas_price"`
	BodyHash     string   `json:"body_hash"`
	Dependencies []string `json:"dependencies"`
	ChainName    string   `json:"chain_name"`
}

type ExecutableItem struct {
	ModuleBytes          *ModuleBytes          `json:"ModuleBytes,omitempty"`
	StoredContractByHash *StoredContractByHash `json:"StoredContractByHash,omitempty"`
}

type ModuleBytes struct {
	ModuleBytes string     `json:"module_bytes"`
	Args        []NamedArg `json:"args"`
}

type StoredContractByHash struct {
	Hash       string     `json:"hash"`
	EntryPoint string     `json:"entry_point"`
	Args       []NamedArg `json:"args"`
}

type Approval struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// NamedArg marshals as the [name, value] pair the RPC schema expects.
type NamedArg struct {
	Name  string
	Value CLValue
}

func (a NamedArg) MarshalJSON() ([]byte, error) {
	value, err := a.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`["%s",%s]`, a.Name, value)), nil
}

type CLValue struct {
	Type   string // "U512", "String" or "Key"
	Bytes  []byte // serialized value, without the type tag
	Parsed string
}

func (v CLValue) MarshalJSON() ([]byte, error) {
	parsed := fmt.Sprintf("%q", v.Parsed)
	if v.Type == "Key" {
		parsed = fmt.Sprintf(`{"Account":%q}`, v.Parsed)
	}
	return []byte(fmt.Sprintf(`{"cl_type":%q,"bytes":%q,"parsed":%s}`, v.Type, hex.EncodeToString(v.Bytes), parsed)), nil
}

var clTypeTags = map[string]byte{
	"U512":   8,
	"String": 10,
	"Key":    11,
}

// --- byte-level serialization ---

func writeU32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

func writeU64(buf []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, v)
}

func writeString(buf []byte, s string) []byte {
	buf = writeU32(buf, uint32(len(s)))
	return append(buf, s...)
}

// U512: one length byte followed by the minimal little-endian magnitude.
func u512Bytes(v *big.Int) []byte {
	be := v.Bytes()
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return append([]byte{byte(len(le))}, le...)
}

func stringBytes(s string) []byte {
	return writeString(nil, s)
}

// Key::Account: 0x00 tag plus the 32-byte account hash.
func accountKeyBytes(accountHash []byte) []byte {
	return append([]byte{0}, accountHash...)
}

// AccountHash derives the Casper account hash for a tagged public key hex
// (01 = ed25519, 02 = secp256k1).
func AccountHash(publicKeyHex string) ([]byte, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(raw) < 2 {
		return nil, fmt.Errorf("invalid public key hex: %s", publicKeyHex)
	}

	var algorithm string
	switch raw[0] {
	case 1:
		algorithm = "ed25519"
	case 2:
		algorithm = "secp256k1"
	default:
		return nil, fmt.Errorf("unsupported public key tag: %d", raw[0])
	}

	payload := append([]byte(algorithm), 0)
	payload = append(payload, raw[1:]...)
	sum := blake2b.Sum256(payload)
	return sum[:], nil
}

func argsBytes(args []NamedArg) []byte {
	buf := writeU32(nil, uint32(len(args)))
	for _, arg := range args {
		buf = writeString(buf, arg.Name)
		buf = writeU32(buf, uint32(len(arg.Value.Bytes)))
		buf = append(buf, arg.Value.Bytes...)
		buf = append(buf, clTypeTags[arg.Value.Type])
	}
	return buf
}

func itemBytes(item ExecutableItem) []byte {
	if item.ModuleBytes != nil {
		buf := []byte{0}
		buf = writeU32(buf, uint32(len(item.ModuleBytes.ModuleBytes)/2))
		raw, _ := hex.DecodeString(item.ModuleBytes.ModuleBytes)
		buf = append(buf, raw...)
		return append(buf, argsBytes(item.ModuleBytes.Args)...)
	}

	buf := []byte{1}
	raw, _ := hex.DecodeString(item.StoredContractByHash.Hash)
	buf = append(buf, raw...)
	buf = writeString(buf, item.StoredContractByHash.EntryPoint)
	return append(buf, argsBytes(item.StoredContractByHash.Args)...)
}

func headerBytes(header DeployHeader, timestamp time.Time, ttl time.Duration) []byte {
	account, _ := hex.DecodeString(header.Account)
	buf := append([]byte{}, account...)
	buf = writeU64(buf, uint64(timestamp.UnixMilli()))
	buf = writeU64(buf, uint64(ttl.Milliseconds()))
	buf = writeU64(buf, header.GasPrice)
	bodyHash, _ := hex.DecodeString(header.BodyHash)
	buf = append(buf, bodyHash...)
	buf = writeU32(buf, uint32(len(header.Dependencies)))
	return writeString(buf, header.ChainName)
}

const deployTTL = 30 * time.Minute

// BuildDeploy assembles, hashes and signs a stored-contract deploy.
func BuildDeploy(keys *KeyPair, chainName string, payment *big.Int, session StoredContractByHash, now time.Time) Deploy {
	paymentItem := ExecutableItem{
		ModuleBytes: &ModuleBytes{
			ModuleBytes: "",
			Args: []NamedArg{{
				Name:  "amount",
				Value: CLValue{Type: "U512", Bytes: u512Bytes(payment), Parsed: payment.String()},
			}},
		},
	}
	sessionItem := ExecutableItem{StoredContractByHash: &session}

	body := append(itemBytes(paymentItem), itemBytes(sessionItem)...)
	bodyHash := blake2b.Sum256(body)

	header := DeployHeader{
		Account:      keys.AccountHex(),
		Timestamp:    now.UTC().Format("2006-01-02T15:04:05.000Z"),
		TTL:          "30m",
		GasPrice:     1,
		BodyHash:     hex.EncodeToString(bodyHash[:]),
		Dependencies: []string{},
		ChainName:    chainName,
	}

	deployHash := blake2b.Sum256(headerBytes(header, now, deployTTL))

	return Deploy{
		Hash:    hex.EncodeToString(deployHash[:]),
		Header:  header,
		Payment: paymentItem,
		Session: sessionItem,
		Approvals: []Approval{{
			Signer:    keys.AccountHex(),
			Signature: keys.Sign(deployHash[:]),
		}},
	}
}

// StripHashPrefix removes the "hash-" prefix contract identifiers carry.
func StripHashPrefix(hash string) string {
	return strings.TrimPrefix(hash, "hash-")
}
