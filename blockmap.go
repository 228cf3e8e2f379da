package mofs

import "encoding/binary"

func readWordBlock(fs *FileSystem, blk uint32) ([]uint32, error) {
	raw := make([]byte, BlockSize)
	if err := fs.blocks.Read(blk, raw); err != nil {
		return nil, err
	}
	words := make([]uint32, singleIndirectSlot)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[4*i : 4*i+4])
	}
	return words, nil
}

func writeWordBlock(fs *FileSystem, blk uint32, words []uint32) error {
	raw := make([]byte, BlockSize)
	for i, w := range words {
		binary.LittleEndian.PutUint32(raw[4*i:4*i+4], w)
	}
	return fs.blocks.Write(blk, raw)
}

func allocZeroBlock(fs *FileSystem) (uint32, error) {
	blk, err := fs.sb.AllocBlock(fs.img)
	if err != nil {
		return 0, err
	}
	if err := fs.blocks.Write(blk, make([]byte, BlockSize)); err != nil {
		return 0, err
	}
	return blk, nil
}

// readSlotInBlock reads the idx-th uint32 in parentBlk, treating parentBlk
// == 0 as an entirely unmaterialized index block (so every slot reads 0).
func readSlotInBlock(fs *FileSystem, parentBlk uint32, idx int) (uint32, error) {
	if parentBlk == 0 {
		return 0, nil
	}
	words, err := readWordBlock(fs, parentBlk)
	if err != nil {
		return 0, err
	}
	return words[idx], nil
}

// ensureSlotInBlock is readSlotInBlock's allocating counterpart: if the
// idx-th slot in parentBlk is the empty-slot sentinel, a fresh zeroed block
// is allocated and patched in before the index block is written back. Used
// both for the final data-block leaf and for the second level of a
// double-indirect table, since "ensure this word slot names a block" is
// the same operation either way.
func ensureSlotInBlock(fs *FileSystem, parentBlk uint32, idx int) (uint32, error) {
	words, err := readWordBlock(fs, parentBlk)
	if err != nil {
		return 0, err
	}
	if words[idx] != 0 {
		return words[idx], nil
	}
	newBlk, err := allocZeroBlock(fs)
	if err != nil {
		return 0, err
	}
	words[idx] = newBlk
	if err := writeWordBlock(fs, parentBlk, words); err != nil {
		return 0, err
	}
	return newBlk, nil
}

// ensureAddrSlotBlock ensures ino.Addr[slot] names an index block,
// allocating and zeroing a fresh one if it is still the empty sentinel.
func ensureAddrSlotBlock(fs *FileSystem, ino *MemInode, slot int) (uint32, error) {
	if ino.Addr[slot] != 0 {
		return ino.Addr[slot], nil
	}
	blk, err := allocZeroBlock(fs)
	if err != nil {
		return 0, err
	}
	ino.Addr[slot] = blk
	ino.markDirty()
	return blk, nil
}

// blockMap translates a logical block index into a physical block index,
// returning 0 (the empty-slot sentinel) when the logical block has never
// been materialized.
func blockMap(fs *FileSystem, ino *MemInode, logical uint32) (uint32, error) {
	if logical < directBlocks {
		return ino.Addr[logical], nil
	}
	logical -= directBlocks

	if logical < singleIndirectSlot {
		return readSlotInBlock(fs, ino.Addr[6], int(logical))
	}
	logical -= singleIndirectSlot

	if logical < singleIndirectSlot {
		return readSlotInBlock(fs, ino.Addr[7], int(logical))
	}
	logical -= singleIndirectSlot

	doubleSpan := uint32(singleIndirectSlot * singleIndirectSlot)
	if logical < doubleSpan {
		outer, inner := logical/singleIndirectSlot, logical%singleIndirectSlot
		outerBlk, err := readSlotInBlock(fs, ino.Addr[8], int(outer))
		if err != nil || outerBlk == 0 {
			return 0, err
		}
		return readSlotInBlock(fs, outerBlk, int(inner))
	}
	logical -= doubleSpan

	if logical < doubleSpan {
		outer, inner := logical/singleIndirectSlot, logical%singleIndirectSlot
		outerBlk, err := readSlotInBlock(fs, ino.Addr[9], int(outer))
		if err != nil || outerBlk == 0 {
			return 0, err
		}
		return readSlotInBlock(fs, outerBlk, int(inner))
	}

	return 0, ErrTooLarge
}

// ensureBlock is blockMap's allocating counterpart, used by Expand: it
// guarantees the physical block backing logical exists, allocating any
// missing data or index blocks along the way (zero-filled, per the
// requirement that newly exposed bytes read back as zero).
func ensureBlock(fs *FileSystem, ino *MemInode, logical uint32) (uint32, error) {
	if logical < directBlocks {
		if ino.Addr[logical] == 0 {
			blk, err := allocZeroBlock(fs)
			if err != nil {
				return 0, err
			}
			ino.Addr[logical] = blk
			ino.markDirty()
		}
		return ino.Addr[logical], nil
	}
	logical -= directBlocks

	if logical < singleIndirectSlot {
		idxBlk, err := ensureAddrSlotBlock(fs, ino, 6)
		if err != nil {
			return 0, err
		}
		return ensureSlotInBlock(fs, idxBlk, int(logical))
	}
	logical -= singleIndirectSlot

	if logical < singleIndirectSlot {
		// The reference source's Expand patches i_addr[6] again here,
		// a transcription bug; the second single-indirect table is
		// i_addr[7].
		idxBlk, err := ensureAddrSlotBlock(fs, ino, 7)
		if err != nil {
			return 0, err
		}
		return ensureSlotInBlock(fs, idxBlk, int(logical))
	}
	logical -= singleIndirectSlot

	doubleSpan := uint32(singleIndirectSlot * singleIndirectSlot)
	if logical < doubleSpan {
		outer, inner := logical/singleIndirectSlot, logical%singleIndirectSlot
		outerIdxBlk, err := ensureAddrSlotBlock(fs, ino, 8)
		if err != nil {
			return 0, err
		}
		innerIdxBlk, err := ensureSlotInBlock(fs, outerIdxBlk, int(outer))
		if err != nil {
			return 0, err
		}
		return ensureSlotInBlock(fs, innerIdxBlk, int(inner))
	}
	logical -= doubleSpan

	if logical < doubleSpan {
		outer, inner := logical/singleIndirectSlot, logical%singleIndirectSlot
		outerIdxBlk, err := ensureAddrSlotBlock(fs, ino, 9)
		if err != nil {
			return 0, err
		}
		innerIdxBlk, err := ensureSlotInBlock(fs, outerIdxBlk, int(outer))
		if err != nil {
			return 0, err
		}
		return ensureSlotInBlock(fs, innerIdxBlk, int(inner))
	}

	return 0, ErrTooLarge
}

// Expand grows ino's addressing tree to cover newSize bytes. Any
// allocation failure partway through leaves the partial growth in place;
// the caller observes the error and may choose to truncate.
func Expand(fs *FileSystem, ino *MemInode, newSize uint32) error {
	from := ceilBlocks(ino.Size)
	to := ceilBlocks(newSize)
	for lb := from; lb < to; lb++ {
		if _, err := ensureBlock(fs, ino, lb); err != nil {
			return err
		}
	}
	return nil
}

// Read copies up to len(buf) bytes starting at offset into buf, clipped to
// the inode's current size, and returns the number of bytes copied.
//
// The head partial block is copied starting at offset % BlockSize; some
// reference sources instead copy from the tail of the block buffer, which
// only happens to work when offset is block-aligned.
func Read(fs *FileSystem, ino *MemInode, offset int64, buf []byte) (int, error) {
	if offset >= int64(ino.Size) || len(buf) == 0 {
		return 0, nil
	}
	end := offset + int64(len(buf))
	if end > int64(ino.Size) {
		end = int64(ino.Size)
	}

	startBlock := uint32(offset / BlockSize)
	endBlock := uint32((end - 1) / BlockSize)
	blockBuf := make([]byte, BlockSize)
	copied := 0

	for lb := startBlock; lb <= endBlock; lb++ {
		phys, err := blockMap(fs, ino, lb)
		if err != nil {
			return copied, err
		}
		if phys == 0 {
			for i := range blockBuf {
				blockBuf[i] = 0
			}
		} else if err := fs.blocks.Read(phys, blockBuf); err != nil {
			return copied, err
		}

		blockStart := int64(lb) * BlockSize
		copyStart := int64(0)
		if lb == startBlock {
			copyStart = offset % BlockSize
		}
		copyEnd := int64(BlockSize)
		if blockStart+BlockSize > end {
			copyEnd = end - blockStart
		}

		n := copy(buf[copied:], blockBuf[copyStart:copyEnd])
		copied += n
	}
	return copied, nil
}

// Write stores len(buf) bytes at offset, expanding ino first if the write
// extends past the current size, and returns the number of bytes written.
func Write(fs *FileSystem, ino *MemInode, offset int64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	end := offset + int64(len(buf))
	if end > MaxFileSize {
		return 0, ErrTooLarge
	}

	if end > int64(ino.Size) {
		if err := Expand(fs, ino, uint32(end)); err != nil {
			return 0, err
		}
	}

	startBlock := uint32(offset / BlockSize)
	endBlock := uint32((end - 1) / BlockSize)
	blockBuf := make([]byte, BlockSize)
	written := 0

	for lb := startBlock; lb <= endBlock; lb++ {
		phys, err := blockMap(fs, ino, lb)
		if err != nil {
			return written, err
		}
		if phys == 0 {
			return written, ErrIO
		}

		blockStart := int64(lb) * BlockSize
		writeStart := int64(0)
		if lb == startBlock {
			writeStart = offset % BlockSize
		}
		writeEnd := int64(BlockSize)
		if blockStart+BlockSize > end {
			writeEnd = end - blockStart
		}

		if writeStart != 0 || writeEnd != BlockSize {
			if err := fs.blocks.Read(phys, blockBuf); err != nil {
				return written, err
			}
		}
		n := copy(blockBuf[writeStart:writeEnd], buf[written:])
		if err := fs.blocks.Write(phys, blockBuf); err != nil {
			return written, err
		}
		written += n
	}

	if end > int64(ino.Size) {
		ino.Size = uint32(end)
	}
	ino.markDirty()
	return written, nil
}

// ReleaseBlocks walks ino's addressing tree in post-order, releasing every
// data block and every index block back to the superblock allocator, then
// resets the addressing table and size.
func ReleaseBlocks(fs *FileSystem, ino *MemInode) error {
	for i := 0; i < directBlocks; i++ {
		if ino.Addr[i] > 0 {
			if err := fs.sb.ReleaseBlock(fs.img, ino.Addr[i]); err != nil {
				return err
			}
		}
	}

	for _, slot := range [2]int{6, 7} {
		if ino.Addr[slot] == 0 {
			continue
		}
		words, err := readWordBlock(fs, ino.Addr[slot])
		if err != nil {
			return err
		}
		for _, w := range words {
			if w == 0 {
				break
			}
			if err := fs.sb.ReleaseBlock(fs.img, w); err != nil {
				return err
			}
		}
		if err := fs.sb.ReleaseBlock(fs.img, ino.Addr[slot]); err != nil {
			return err
		}
	}

	for _, slot := range [2]int{8, 9} {
		if ino.Addr[slot] == 0 {
			continue
		}
		words, err := readWordBlock(fs, ino.Addr[slot])
		if err != nil {
			return err
		}
		for _, w := range words {
			if w == 0 {
				break
			}
			inner, err := readWordBlock(fs, w)
			if err != nil {
				return err
			}
			for _, iw := range inner {
				if iw == 0 {
					break
				}
				if err := fs.sb.ReleaseBlock(fs.img, iw); err != nil {
					return err
				}
			}
			if err := fs.sb.ReleaseBlock(fs.img, w); err != nil {
				return err
			}
		}
		if err := fs.sb.ReleaseBlock(fs.img, ino.Addr[slot]); err != nil {
			return err
		}
	}

	ino.Addr = [addrTableSize]uint32{}
	ino.Size = 0
	ino.markDirty()
	return nil
}
