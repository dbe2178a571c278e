package pipeline

import "math"

// CosineSimilarity returns the cosine of the angle between two embedding
// vectors: dot product over the product of L2 norms. Zero when either
// vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// singleLinkClusters groups embeddings by seed similarity. Faces are
// scanned in order; each unassigned face seeds a new cluster and pulls in
// every later unassigned face whose similarity to that seed meets the
// threshold. A face joins the first seed it matches, so there is no
// transitive merging across seeds and the result depends on input order.
func singleLinkClusters(embeddings [][]float64, threshold float64) [][]int {
	var clusters [][]int
	assigned := make([]bool, len(embeddings))

	for i := range embeddings {
		if assigned[i] {
			continue
		}

		cluster := []int{i}
		assigned[i] = true

		for j := i + 1; j < len(embeddings); j++ {
			if assigned[j] {
				continue
			}
			if CosineSimilarity(embeddings[i], embeddings[j]) >= threshold {
				cluster = append(cluster, j)
				assigned[j] = true
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}
