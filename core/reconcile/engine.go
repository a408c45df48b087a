package reconcile

import "strconv"

// LocalOnlyKey builds the key used for rows that have no remote identity yet.
func LocalOnlyKey(localID int64) string {
	return "local:" + strconv.FormatInt(localID, 10)
}

// Partition builds the union of local and remote keys and returns one result per key.
// Local rows keep their input order and come first, remote-only records follow
// in listing order, so the output is deterministic for deterministic inputs.
func Partition[L, R any](adapter Adapter[L, R], locals []L, remotes []R) []Result[L, R] {
	remoteIndex := make(map[string]int, len(remotes))
	for i, r := range remotes {
		remoteIndex[adapter.RemoteKey(r)] = i
	}

	results := make([]Result[L, R], 0, len(locals)+len(remotes))
	matched := make(map[string]struct{}, len(locals))

	for _, l := range locals {
		result := Result[L, R]{
			Local:        l,
			LocalPresent: true,
			Status:       adapter.LocalStatus(l),
		}

		key, ok := adapter.LocalKey(l)
		if !ok {
			result.Key = LocalOnlyKey(adapter.LocalID(l))
			results = append(results, result)
			continue
		}

		result.Key = key
		if i, exists := remoteIndex[key]; exists {
			if _, dup := matched[key]; !dup {
				result.Remote = remotes[i]
				result.RemotePresent = true
				matched[key] = struct{}{}
			}
		}
		results = append(results, result)
	}

	for _, r := range remotes {
		key := adapter.RemoteKey(r)
		if _, ok := matched[key]; ok {
			continue
		}
		matched[key] = struct{}{}
		results = append(results, Result[L, R]{
			Key:           key,
			Remote:        r,
			RemotePresent: true,
		})
	}

	return results
}
