package s7

import "sort"

// readRequestOverhead and readResponseOverhead are the non-item bytes
// consumed by READ_VAR's S7 header and parameter head, per spec §4.F.
const (
	readRequestOverhead  = 19
	readResponseOverhead = 14
	readItemRequestCost  = 12
	stringChunkThreshold = 26 // pduSize - this is the largest single chunk of a STRING/WSTRING read
)

// member is one original tag packed into a group's response. srcOffset is
// where this tag's bytes begin within the group's own returned buffer (used
// when several tags are coalesced into one wider read); destOffset is where
// they belong within the tag's own reassembled buffer (used when one tag's
// read is split across several chunk groups). A member only ever uses one of
// the two: coalesced members keep destOffset at 0 (the tag is never itself
// split across groups), chunk members keep srcOffset at 0 (the chunk's data
// starts at the tag's own byte 0).
type member struct {
	tag        Tag
	srcOffset  int
	destOffset int
}

// group is one wire-level read item, covering one or more original tags
// (when optimize coalesced adjacent/overlapping tags into a single range
// read).
type group struct {
	item    readItem
	size    int // response payload byte size for this group
	members []member
}

// chunkPlan describes how one oversized STRING/WSTRING tag was split into
// several raw byte-range reads that must be concatenated, in order, before
// decoding.
type chunkPlan struct {
	tag    Tag
	groups []*group
}

// planResult is the output of planning a set of reads: the PDU-bounded
// batches to execute in order, plus the chunk plans (if any) whose pieces
// must be reassembled after all batches complete.
type planResult struct {
	batches [][]*group
	chunks  []chunkPlan
}

// planReads builds the batches of READ_VAR requests needed to fetch tags
// within the negotiated pduSize. When optimize is true, adjacent or
// overlapping tags sharing an area/db/type family are coalesced into a
// single wider read.
func planReads(tags []Tag, pduSize uint16, optimize bool) (planResult, error) {
	var groups []*group
	var chunks []chunkPlan

	plain := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if (t.DataType == String || t.DataType == WString) && t.Size() > int(pduSize)-stringChunkThreshold {
			cp, err := planStringChunks(t, pduSize)
			if err != nil {
				return planResult{}, err
			}
			chunks = append(chunks, cp)
			groups = append(groups, cp.groups...)
			continue
		}
		plain = append(plain, t)
	}

	if optimize {
		groups = append(groups, coalesce(plain)...)
	} else {
		for _, t := range plain {
			groups = append(groups, &group{item: tagToReadItem(t), size: t.Size(), members: []member{{tag: t}}})
		}
	}

	budget := int(pduSize) - readRequestOverhead
	respBudget := int(pduSize) - readResponseOverhead
	batches, err := packGroups(groups, budget, respBudget)
	if err != nil {
		return planResult{}, err
	}
	return planResult{batches: batches, chunks: chunks}, nil
}

// coalesce merges tags that share an area/db/data-type family and whose
// byte ranges are adjacent or overlapping into single wider byte-range
// reads. BIT tags are never coalesced: their sub-byte addressing does not
// compose cleanly into a byte range.
func coalesce(tags []Tag) []*group {
	byFamily := map[family][]Tag{}
	order := []family{}
	for _, t := range tags {
		f := t.family()
		if _, ok := byFamily[f]; !ok {
			order = append(order, f)
		}
		byFamily[f] = append(byFamily[f], t)
	}

	var groups []*group
	for _, f := range order {
		members := byFamily[f]
		if f.dataType == Bit {
			for _, t := range members {
				groups = append(groups, &group{item: tagToReadItem(t), size: t.Size(), members: []member{{tag: t}}})
			}
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Start < members[j].Start })

		i := 0
		for i < len(members) {
			start, end := members[i].byteRange()
			var mm []member
			mm = append(mm, member{tag: members[i]})
			j := i + 1
			for j < len(members) {
				ns, ne := members[j].byteRange()
				if ns > end {
					break
				}
				mm = append(mm, member{tag: members[j], srcOffset: ns - start})
				if ne > end {
					end = ne
				}
				j++
			}
			groups = append(groups, &group{
				item:    rawByteReadItem(f.area, f.db, start, end-start),
				size:    end - start,
				members: mm,
			})
			i = j
		}
	}
	return groups
}

// planStringChunks splits one oversized STRING/WSTRING tag's byte range
// into sequential raw byte reads, each within pduSize's per-item budget.
func planStringChunks(t Tag, pduSize uint16) (chunkPlan, error) {
	chunkSize := int(pduSize) - stringChunkThreshold
	if chunkSize <= 0 {
		return chunkPlan{}, &PDUError{Address: t.String(), Required: t.Size(), Budget: int(pduSize)}
	}
	start, end := t.byteRange()
	var groups []*group
	for pos := start; pos < end; pos += chunkSize {
		n := chunkSize
		if pos+n > end {
			n = end - pos
		}
		groups = append(groups, &group{
			item:    rawByteReadItem(t.Area, t.DBNumber, pos, n),
			size:    n,
			members: []member{{tag: t, destOffset: pos - start}},
		})
	}
	return chunkPlan{tag: t, groups: groups}, nil
}

// packGroups greedily packs groups into batches bounded by maxItemsPerPDU
// and the request/response byte budgets.
func packGroups(groups []*group, reqBudget, respBudget int) ([][]*group, error) {
	var batches [][]*group
	var cur []*group
	reqUsed, respUsed := 0, 0

	for _, g := range groups {
		reqCost := readItemRequestCost
		respCost := 4 + evenUp(g.size)
		if reqCost > reqBudget || respCost > respBudget {
			return nil, &PDUError{Address: g.members[0].tag.String(), Required: respCost, Budget: respBudget}
		}
		if len(cur) >= maxItemsPerPDU || reqUsed+reqCost > reqBudget || respUsed+respCost > respBudget {
			if len(cur) > 0 {
				batches = append(batches, cur)
			}
			cur = nil
			reqUsed, respUsed = 0, 0
		}
		cur = append(cur, g)
		reqUsed += reqCost
		respUsed += respCost
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}

func evenUp(n int) int {
	if n%2 == 1 {
		return n + 1
	}
	return n
}

// writeRequestOverhead and writeItemHeaderCost mirror the read-side
// budgeting for WRITE_VAR, per spec §4.F.
const (
	writeRequestOverhead = 19
	writeItemHeaderCost  = 4
)

// planWrites groups (tag, value-bytes) pairs into PDU-bounded WRITE_VAR
// batches. Unlike reads, writes are never coalesced: each tag keeps its own
// address item so a failed item can be reported precisely.
func planWrites(tags []Tag, payloads [][]byte, pduSize uint16) ([][]int, error) {
	budget := int(pduSize) - writeRequestOverhead
	var batches [][]int
	var cur []int
	used := 0

	for i, t := range tags {
		cost := readItemRequestCost + writeItemHeaderCost + evenUp(len(payloads[i]))
		if cost > budget {
			return nil, &PDUError{Address: t.String(), Required: cost, Budget: budget}
		}
		if len(cur) >= maxItemsPerPDU || used+cost > budget {
			if len(cur) > 0 {
				batches = append(batches, cur)
			}
			cur = nil
			used = 0
		}
		cur = append(cur, i)
		used += cost
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}
