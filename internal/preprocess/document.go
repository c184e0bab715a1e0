package preprocess

// Document is the normalized handle produced by pre-processing and read by transcription.
type Document struct {
	SourcePath  string // file the caller handed in
	Path        string // file transcription should read; differs from SourcePath after conversion
	FileName    string // base name of SourcePath
	Ext         string // normalized extension of Path, no dot
	Format      string // constants.PDF | constants.IMAGE | constants.TXT
	ContentHash string // hex sha256 of the source bytes
	Size        int64
	Converted   bool
}
