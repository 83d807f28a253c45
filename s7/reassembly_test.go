package s7

import "testing"

// Coalesced multi-member groups must extract each tag's own slice from the
// group's combined buffer (srcOffset), not always the buffer's first bytes.
func TestAppendChunkCoalescedMultiMember(t *testing.T) {
	tags := []Tag{
		MustTag(AreaDB, 1, Int, 0, 0, 1),
		MustTag(AreaDB, 1, Int, 2, 0, 1),
		MustTag(AreaDB, 1, Int, 4, 0, 1),
	}
	groups := coalesce(tags)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 coalesced group", len(groups))
	}
	g := groups[0]
	data := []byte{0x00, 0x0A, 0x00, 0x0B, 0x00, 0x0C} // tag values 10, 11, 12

	byTag := map[Tag][]byte{}
	for _, m := range g.members {
		n := len(data) - m.srcOffset
		if max := m.tag.Size() - m.destOffset; n > max {
			n = max
		}
		byTag[m.tag] = appendChunk(byTag[m.tag], m, data, n)
	}

	for i, want := range []int64{10, 11, 12} {
		v, err := decodeTagValue(tags[i], byTag[tags[i]])
		if err != nil {
			t.Fatalf("decodeTagValue(%v) error: %v", tags[i], err)
		}
		got, _ := v.Int()
		if got != want {
			t.Errorf("tag %d decoded = %d, want %d", i, got, want)
		}
	}
}

// A chunked STRING/WSTRING read must reassemble its groups in order without
// panicking, even though each chunk's own data buffer is shorter than the
// tag's full declared size (the bug fixed per review: appendChunk used to
// clamp n to the full tag size and slice data[:n], overrunning a short
// chunk's buffer on the very first fragment).
func TestAppendChunkStringChunks(t *testing.T) {
	tag := MustTag(AreaDB, 1, String, 10, 0, 254)
	plan, err := planStringChunks(tag, 240)
	if err != nil {
		t.Fatalf("planStringChunks error: %v", err)
	}
	if len(plan.groups) != 2 {
		t.Fatalf("got %d chunk groups, want 2", len(plan.groups))
	}

	full := make([]byte, tag.Size())
	full[0] = 254           // max length
	full[1] = 5             // current length
	copy(full[2:], "hello") // payload within the first chunk

	var buf []byte
	for _, g := range plan.groups {
		start, end := 0, g.size
		chunk := full[g.item.bitAddr/8-tag.Start:][:end-start]
		for _, m := range g.members {
			n := len(chunk) - m.srcOffset
			if max := m.tag.Size() - m.destOffset; n > max {
				n = max
			}
			buf = appendChunk(buf, m, chunk, n)
		}
	}

	if len(buf) != tag.Size() {
		t.Fatalf("reassembled buffer length = %d, want %d", len(buf), tag.Size())
	}
	s, err := decodeTagValue(tag, buf)
	if err != nil {
		t.Fatalf("decodeTagValue error: %v", err)
	}
	text, _ := s.Text()
	if text != "hello" {
		t.Errorf("decoded string = %q, want %q", text, "hello")
	}
}
