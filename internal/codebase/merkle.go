package codebase

import (
	"crypto/sha256"
	"encoding/hex"
)

// FileNode is one blob entry from a repository tree listing, in the order the
// tree API returned it. Only blob entries participate in the Merkle tree;
// tree (directory) entries are filtered out before BuildMerkleTree is called.
type FileNode struct {
	Path string
	SHA  string
	Size int64
}

// MerkleLeaf is a computed leaf of the tree, keyed by the node's path so
// incremental updates can diff by path rather than position.
type MerkleLeaf struct {
	Path string
	Hash string
}

// Tree is a binary hash tree built bottom-up over an ordered sequence of file
// leaves, per the project's "tree of ordered blobs" construction: leafHash =
// H(path‖sha‖size), interior hashes are H(left‖right), and an odd node at any
// level is promoted by self-duplication, H(node‖node). Building the same leaf
// sequence twice always yields the same RootHash.
type Tree struct {
	Leaves []MerkleLeaf
	levels [][]string // level 0 = leaf hashes, last level = [RootHash]
}

// RootHash is the content address of the whole tree, persisted as
// CodebaseProject.MerkleRootHash. The empty tree hashes to the SHA-256 of the
// empty string.
func (t *Tree) RootHash() string {
	if len(t.levels) == 0 {
		return hashHex()
	}
	top := t.levels[len(t.levels)-1]
	return top[0]
}

func hashHex(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func leafHash(n FileNode) string {
	return hashHex(n.Path, n.SHA, int64ToString(n.Size))
}

func int64ToString(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// BuildMerkleTree builds the tree bottom-up in the exact iteration order of
// nodes (the order the repository tree listing was fetched in), so two
// fetches of the same tree always produce a byte-identical RootHash.
func BuildMerkleTree(nodes []FileNode) *Tree {
	leaves := make([]MerkleLeaf, len(nodes))
	level := make([]string, len(nodes))
	for i, n := range nodes {
		h := leafHash(n)
		leaves[i] = MerkleLeaf{Path: n.Path, Hash: h}
		level[i] = h
	}

	t := &Tree{Leaves: leaves}
	if len(level) == 0 {
		t.levels = [][]string{{hashHex()}}
		return t
	}

	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashHex(level[i], level[i+1]))
			} else {
				next = append(next, hashHex(level[i], level[i])) // odd node promoted by duplication
			}
		}
		level = next
		t.levels = append(t.levels, level)
	}
	return t
}

// Diff returns the symmetric difference of leaf paths between old and
// current: paths present in one tree's leaves but not the other, or present
// in both under different hashes. Only these paths need re-chunking and
// re-embedding; everything else is an unchanged subtree.
func Diff(old, current []MerkleLeaf) []string {
	oldByPath := make(map[string]string, len(old))
	for _, l := range old {
		oldByPath[l.Path] = l.Hash
	}
	curByPath := make(map[string]string, len(current))
	for _, l := range current {
		curByPath[l.Path] = l.Hash
	}

	changed := make([]string, 0)
	for path, h := range curByPath {
		if oldByPath[path] != h {
			changed = append(changed, path)
		}
	}
	for path := range oldByPath {
		if _, ok := curByPath[path]; !ok {
			changed = append(changed, path)
		}
	}
	return changed
}
