package authman

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Fixed field sizes of the on-disk manifest format. The hardware verifier
// depends on exact offsets and sizes; changing any of these is a breaking
// format change.
const (
	ECCSignatureSize = 96
	ECCPublicKeySize = 96
	LMSSignatureSize = 1620
	LMSPublicKeySize = 48
	SHA384DigestSize = 48

	// ImageMetadataMaxCount is the fixed capacity of the metadata
	// collection. Entries beyond Count are retained padding.
	ImageMetadataMaxCount = 127
)

// Derived record sizes. The preamble and the collection are stored
// back-to-back with no gap.
const (
	PreambleSize = 5*4 +
		2*(ECCPublicKeySize+LMSPublicKeySize+ECCSignatureSize+LMSSignatureSize) +
		(ECCSignatureSize + LMSSignatureSize) +
		2*(ECCSignatureSize+LMSSignatureSize)

	ImageMetadataEntrySize = 4 + 4 + SHA384DigestSize

	ImageMetadataCollectionSize = 4 + ImageMetadataMaxCount*ImageMetadataEntrySize

	ManifestImageSize = PreambleSize + ImageMetadataCollectionSize
)

// Preamble is the fixed-size header record of the authorization manifest.
//
// The upstream manifest builder emits all fields; SecurityVersion and the
// two SVN signature slots arrive zeroed and are written only by
// EmbedSecurityVersion. Signature and public-key fields are opaque byte
// arrays whose internal byte order is governed by the signature format
// converter, not by the codec.
type Preamble struct {
	Magic           uint32
	Size            uint32
	Version         uint32
	SecurityVersion uint32
	Flags           uint32

	VendorECCPubKey [ECCPublicKeySize]byte
	VendorLMSPubKey [LMSPublicKeySize]byte
	VendorECCSig    [ECCSignatureSize]byte
	VendorLMSSig    [LMSSignatureSize]byte

	OwnerECCPubKey [ECCPublicKeySize]byte
	OwnerLMSPubKey [LMSPublicKeySize]byte
	OwnerECCSig    [ECCSignatureSize]byte
	OwnerLMSSig    [LMSSignatureSize]byte

	SVNECCSig [ECCSignatureSize]byte
	SVNLMSSig [LMSSignatureSize]byte

	VendorMetadataECCSig [ECCSignatureSize]byte
	VendorMetadataLMSSig [LMSSignatureSize]byte
	OwnerMetadataECCSig  [ECCSignatureSize]byte
	OwnerMetadataLMSSig  [LMSSignatureSize]byte
}

// ImageMetadataEntry describes one authorized firmware image.
type ImageMetadataEntry struct {
	ID     uint32
	Flags  uint32
	Digest [SHA384DigestSize]byte
}

// ImageMetadataCollection is the fixed-capacity list of metadata entries
// stored immediately after the preamble.
type ImageMetadataCollection struct {
	Count   uint32
	Entries [ImageMetadataMaxCount]ImageMetadataEntry
}

// cursor walks a byte buffer field by field. Reads and writes are
// unaligned-safe: the buffer is an arbitrary byte sequence from disk.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v
}

func (c *cursor) bytes(dst []byte) {
	copy(dst, c.buf[c.off:c.off+len(dst)])
	c.off += len(dst)
}

func (c *cursor) putU32(v uint32) {
	binary.LittleEndian.PutUint32(c.buf[c.off:], v)
	c.off += 4
}

func (c *cursor) putBytes(src []byte) {
	copy(c.buf[c.off:], src)
	c.off += len(src)
}

// DecodeManifestImage decodes the preamble from byte offset 0 and the
// metadata collection from the offset immediately following it.
func DecodeManifestImage(buf []byte) (*Preamble, *ImageMetadataCollection, error) {
	if len(buf) < ManifestImageSize {
		return nil, nil, fmt.Errorf("manifest image is %d bytes, need %d: %w",
			len(buf), ManifestImageSize, ErrTruncatedInput)
	}

	p := &Preamble{}
	c := &cursor{buf: buf}
	p.Magic = c.u32()
	p.Size = c.u32()
	p.Version = c.u32()
	p.SecurityVersion = c.u32()
	p.Flags = c.u32()
	c.bytes(p.VendorECCPubKey[:])
	c.bytes(p.VendorLMSPubKey[:])
	c.bytes(p.VendorECCSig[:])
	c.bytes(p.VendorLMSSig[:])
	c.bytes(p.OwnerECCPubKey[:])
	c.bytes(p.OwnerLMSPubKey[:])
	c.bytes(p.OwnerECCSig[:])
	c.bytes(p.OwnerLMSSig[:])
	c.bytes(p.SVNECCSig[:])
	c.bytes(p.SVNLMSSig[:])
	c.bytes(p.VendorMetadataECCSig[:])
	c.bytes(p.VendorMetadataLMSSig[:])
	c.bytes(p.OwnerMetadataECCSig[:])
	c.bytes(p.OwnerMetadataLMSSig[:])

	col := &ImageMetadataCollection{}
	col.Count = c.u32()
	for i := range col.Entries {
		col.Entries[i].ID = c.u32()
		col.Entries[i].Flags = c.u32()
		c.bytes(col.Entries[i].Digest[:])
	}

	return p, col, nil
}

// EncodeManifestImage produces the exact ManifestImageSize-byte
// representation of the preamble followed by the metadata collection.
func EncodeManifestImage(p *Preamble, col *ImageMetadataCollection) ([]byte, error) {
	if col.Count > ImageMetadataMaxCount {
		return nil, fmt.Errorf("metadata collection count %d exceeds maximum %d",
			col.Count, ImageMetadataMaxCount)
	}

	buf := make([]byte, ManifestImageSize)
	c := &cursor{buf: buf}
	c.putU32(p.Magic)
	c.putU32(p.Size)
	c.putU32(p.Version)
	c.putU32(p.SecurityVersion)
	c.putU32(p.Flags)
	c.putBytes(p.VendorECCPubKey[:])
	c.putBytes(p.VendorLMSPubKey[:])
	c.putBytes(p.VendorECCSig[:])
	c.putBytes(p.VendorLMSSig[:])
	c.putBytes(p.OwnerECCPubKey[:])
	c.putBytes(p.OwnerLMSPubKey[:])
	c.putBytes(p.OwnerECCSig[:])
	c.putBytes(p.OwnerLMSSig[:])
	c.putBytes(p.SVNECCSig[:])
	c.putBytes(p.SVNLMSSig[:])
	c.putBytes(p.VendorMetadataECCSig[:])
	c.putBytes(p.VendorMetadataLMSSig[:])
	c.putBytes(p.OwnerMetadataECCSig[:])
	c.putBytes(p.OwnerMetadataLMSSig[:])
	c.putU32(col.Count)
	for i := range col.Entries {
		c.putU32(col.Entries[i].ID)
		c.putU32(col.Entries[i].Flags)
		c.putBytes(col.Entries[i].Digest[:])
	}

	return buf, nil
}

// Manifest states. Transitions are strictly ordered; steps may be skipped
// but never revisited.
type manifestState int

const (
	stateLoaded manifestState = iota
	stateVendorOverlaid
	stateSvnEmbedded
	stateClosed
)

// Manifest is an in-memory authorization manifest, exclusively owned by
// the command that opened it. It is read whole once, mutated through zero
// or more overlay steps, and written back whole exactly once by Close.
type Manifest struct {
	path  string
	state manifestState

	Preamble *Preamble
	Metadata *ImageMetadataCollection
}

// OpenManifest reads and decodes the manifest at path.
func OpenManifest(path string) (*Manifest, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	p, col, err := DecodeManifestImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return &Manifest{path: path, Preamble: p, Metadata: col}, nil
}

// advance enforces the Loaded -> VendorOverlaid -> SvnEmbedded -> Closed
// ordering.
func (m *Manifest) advance(target manifestState) error {
	if m.state == stateClosed {
		return fmt.Errorf("manifest %s is already closed", m.path)
	}
	if target < m.state {
		return fmt.Errorf("manifest overlay step out of order for %s", m.path)
	}
	m.state = target
	return nil
}

// Close encodes the manifest and overwrites its file. The buffer is fully
// materialized before any bytes hit the disk.
func (m *Manifest) Close() error {
	if err := m.advance(stateClosed); err != nil {
		return err
	}
	buf, err := EncodeManifestImage(m.Preamble, m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode manifest %s: %w", m.path, err)
	}
	if err := os.WriteFile(m.path, buf, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", m.path, err)
	}
	return nil
}
