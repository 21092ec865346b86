package ignore

// Built-in exclusion patterns, grouped by category. These are baked into
// every directory's ruleset and sit between a workspace's .gitignore
// (which they override) and a local .codesyncignore (which overrides
// them). Patterns use gitignore syntax.

// buildArtifactPatterns match compiler and bundler output.
var buildArtifactPatterns = []string{
	"dist/",
	"build/",
	"out/",
	"target/",
	"bin/",
	"obj/",
	"*.o",
	"*.a",
	"*.class",
	"*.pyc",
	"*.pyo",
	"__pycache__/",
	"*.min.js",
	"*.min.css",
	"*.map",
}

// dependencyPatterns match vendored or installed dependency trees.
var dependencyPatterns = []string{
	"node_modules/",
	"bower_components/",
	"vendor/",
	".venv/",
	"venv/",
	".tox/",
	"Pods/",
}

// mediaPatterns match images, audio, video, and fonts.
var mediaPatterns = []string{
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.bmp",
	"*.ico",
	"*.svg",
	"*.webp",
	"*.mp3",
	"*.wav",
	"*.flac",
	"*.ogg",
	"*.mp4",
	"*.avi",
	"*.mov",
	"*.mkv",
	"*.webm",
	"*.ttf",
	"*.otf",
	"*.woff",
	"*.woff2",
	"*.eot",
	"*.pdf",
	"*.psd",
}

// cacheTempPatterns match caches, scratch files, and editor droppings.
var cacheTempPatterns = []string{
	".cache/",
	".tmp/",
	"tmp/",
	"*.tmp",
	"*.temp",
	"*.swp",
	"*.swo",
	"*~",
	".DS_Store",
	"Thumbs.db",
	".pytest_cache/",
	".mypy_cache/",
	".ruff_cache/",
	".turbo/",
	".next/",
	".nuxt/",
	".parcel-cache/",
	"coverage/",
	".nyc_output/",
}

// configEnvPatterns match local configuration and credential files.
var configEnvPatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.crt",
	"*.p12",
	"*.pfx",
	".npmrc",
	".yarnrc",
	".netrc",
	"*.kubeconfig",
}

// archivePatterns match large binaries and archives.
var archivePatterns = []string{
	"*.zip",
	"*.tar",
	"*.tar.gz",
	"*.tgz",
	"*.rar",
	"*.7z",
	"*.gz",
	"*.bz2",
	"*.xz",
	"*.jar",
	"*.war",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.exe",
	"*.bin",
	"*.iso",
	"*.dmg",
	"*.deb",
	"*.rpm",
	"*.wasm",
}

// databasePatterns match database and bulk data files.
var databasePatterns = []string{
	"*.db",
	"*.sqlite",
	"*.sqlite3",
	"*.mdb",
	"*.parquet",
	"*.avro",
	"*.orc",
	"*.feather",
	"*.hdf5",
	"*.h5",
	"*.pkl",
	"*.pickle",
	"*.npy",
	"*.npz",
}

// geospatialPatterns match GIS data formats.
var geospatialPatterns = []string{
	"*.shp",
	"*.shx",
	"*.dbf",
	"*.prj",
	"*.gpkg",
	"*.geojson",
	"*.kml",
	"*.kmz",
	"*.tif",
	"*.tiff",
}

// logPatterns match log output.
var logPatterns = []string{
	"*.log",
	"logs/",
	"npm-debug.log*",
	"yarn-error.log*",
}

// vcsMetaPatterns match version-control metadata directories, including
// their "disabled" renamed variants.
var vcsMetaPatterns = []string{
	".git/",
	".git.disabled/",
	".svn/",
	".svn.disabled/",
	".hg/",
	".hg.disabled/",
	".idea/",
	".vscode/",
	".gitignore",
	".gitattributes",
	".gitmodules",
	".codesyncignore",
}

// DefaultPatterns returns the full built-in exclusion set.
func DefaultPatterns() []string {
	groups := [][]string{
		buildArtifactPatterns,
		dependencyPatterns,
		mediaPatterns,
		cacheTempPatterns,
		configEnvPatterns,
		archivePatterns,
		databasePatterns,
		geospatialPatterns,
		logPatterns,
		vcsMetaPatterns,
	}

	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// WatchSkipDirs are directory names the workspace watcher never descends
// into. Kept small: its purpose is bounding watch descriptors, not
// correctness; the walker applies the full ruleset.
var WatchSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}
