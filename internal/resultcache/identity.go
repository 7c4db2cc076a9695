package resultcache

import "syscall"

// FileIdentity is the stat-derived tuple a cache entry is validated
// against. It deliberately excludes the path: spec requires that renaming
// a file not invalidate its cached verdict, since identity is carried by
// the inode's metadata, not by where it's currently linked.
type FileIdentity struct {
	Size      int64
	UID       uint32
	GID       uint32
	MtimeSec  int64
	MtimeNsec int64
	CtimeSec  int64
	CtimeNsec int64
	Mode      uint32
}

// IdentityFromStat builds a FileIdentity from a syscall.Stat_t, the way
// the original's StatBasedCacheData does — extended to nanosecond
// mtime/ctime precision, since the original only tracked seconds.
func IdentityFromStat(st *syscall.Stat_t) FileIdentity {
	return FileIdentity{
		Size:      st.Size,
		UID:       st.Uid,
		GID:       st.Gid,
		MtimeSec:  st.Mtim.Sec,
		MtimeNsec: st.Mtim.Nsec,
		CtimeSec:  st.Ctim.Sec,
		CtimeNsec: st.Ctim.Nsec,
		Mode:      st.Mode,
	}
}
