package constants

// Application constants
const (
	Name        = "SongEvolve-Go"
	Version     = "1.0.0"
	Description = "Human-in-the-loop evolution of songs encoded as diploid bit-string genomes"

	// Genome layout
	BitsPerParameter   = 8
	NoteParameters     = 5 // start time, frequency, amplitude, duration, phase
	MutationRateBits   = 8
	MutationRateScale  = 255.0 * 5.0
	MaxMutationRate    = 255.0 / MutationRateScale
	ChromosomeSlots    = 10
	AlleleLengthPrefix = 4 // bytes of big-endian length before each allele

	// Default chromosome length ranges (bits)
	DefaultLargeChromosomeMin = 128
	DefaultLargeChromosomeMax = 256
	DefaultSmallChromosomeMin = 8
	DefaultSmallChromosomeMax = 16

	// Mutation defaults
	DefaultMutationRate     = 0.03
	MinProposedMutationRate = 0.00125
	MaxProposedMutationRate = 0.07
	SubstitutionShare       = 0.8
	InsertionShare          = 0.1
	DeletionShare           = 0.1
	MinCrossoverPoints      = 1
	MaxCrossoverPoints      = 4

	// Phenotype scales
	FrequencyStepHz   = 5.0
	AmplitudeDivisor  = 128.0
	DurationStepMilli = 20

	// Reproduction defaults
	DefaultRatingSmoothing = 1.0
	DefaultRatingsPerCycle = 4
	DefaultDecodeWorkers   = 4
	DefaultNodeCapacity    = 4
	DefaultStoreBackend    = "memory"
	SQLiteStoreBackend     = "sqlite"
	DefaultSQLiteFile      = "songevolve.db"
	DefaultRandomSeed      = 0 // 0 means seed from the clock

	// Directory names
	OutputDir     = "songevolve_output"
	CheckpointDir = "checkpoints"

	// Exit codes
	ExitSuccess   = 0
	ExitError     = 1
	ExitInterrupt = 2
)

// Store backends
const (
	StoreMemory = DefaultStoreBackend
	StoreSQLite = SQLiteStoreBackend
)
