package scoring

// RetrievalQuality compares the ranked document identifiers against the set a
// question must be grounded in.
type RetrievalQuality struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
}

// Retrieval computes precision, recall and reciprocal rank of the first
// relevant hit. Nothing retrieved yields zeros; no relevant ids yields zero
// recall and MRR.
func Retrieval(retrieved []string, relevant []string) RetrievalQuality {
	var q RetrievalQuality
	if len(retrieved) == 0 {
		return q
	}
	relevantSet := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		relevantSet[id] = struct{}{}
	}
	hits := 0
	for i, id := range retrieved {
		if _, ok := relevantSet[id]; !ok {
			continue
		}
		hits++
		if q.MRR == 0 {
			q.MRR = 1.0 / float64(i+1)
		}
	}
	q.Precision = float64(hits) / float64(len(retrieved))
	if len(relevantSet) > 0 {
		q.Recall = float64(hits) / float64(len(relevantSet))
	}
	return q
}
